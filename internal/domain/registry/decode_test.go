package registry

import (
	"strings"
	"testing"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activeCSV = `registration_number,state_medical_council,name,qualification_1,qualification_1_year,university_name,email,year_of_info
12001,Andhra Pradesh Medical Council,Ravi Kumar,MBBS,2009,Andhra University,ravi@example.com,2020
12002,Tamil Nadu Medical Council,Meena Iyer,MD,2012,Madras University,,2021
,,,,,,,
`

func TestDecodeCSV(t *testing.T) {
	records, skipped, err := Decode(FormatCSV, strings.NewReader(activeCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, skipped)

	r := records[0]
	assert.Equal(t, "12001", r.RegistrationNumber)
	assert.Equal(t, "Andhra Pradesh Medical Council", r.Council)
	assert.Equal(t, "Ravi Kumar", r.Name)
	assert.Equal(t, "MBBS", r.Qualification)
	assert.Equal(t, "2009", r.QualificationYear)
	assert.Equal(t, "Andhra University", r.University)
	assert.Equal(t, "2020", r.Extra["year_of_info"])

	assert.Empty(t, records[1].Email)
}

func TestDecodeCSV_HeaderAliases(t *testing.T) {
	in := "Reg No, Council ,Doctor Name\nA-7,Delhi Medical Council,X\n"
	records, _, err := Decode(FormatCSV, strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A-7", records[0].RegistrationNumber)
	assert.Equal(t, "Delhi Medical Council", records[0].Council)
	assert.Equal(t, "X", records[0].Name)
}

func TestDecodeCSV_MissingKeyColumns(t *testing.T) {
	_, _, err := Decode(FormatCSV, strings.NewReader("name,email\nA,a@example.com\n"))
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestDecodeCSV_Empty(t *testing.T) {
	records, skipped, err := Decode(FormatCSV, strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, skipped)
}

func TestDecodeCSV_Malformed(t *testing.T) {
	_, _, err := Decode(FormatCSV, strings.NewReader("registration_number,name\n\"unterminated,x\n"))
	assert.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	in := `
practitioners:
  - registration_number: 99999
    state_medical_council: Gujarat Medical Council
    name: Struck Off
    reason: license revoked
  - name: no keys at all
`
	records, skipped, err := Decode(FormatYAML, strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "99999", records[0].RegistrationNumber)
	assert.Equal(t, "license revoked", records[0].Extra["reason"])
}

func TestDecodeYAML_Invalid(t *testing.T) {
	_, _, err := Decode(FormatYAML, strings.NewReader("practitioners: [::"))
	assert.Error(t, err)
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "registration_number")
	f.SetCellValue("Sheet1", "B1", "state_medical_council")
	f.SetCellValue("Sheet1", "C1", "name")
	f.SetCellValue("Sheet1", "A2", "3003")
	f.SetCellValue("Sheet1", "B2", "Kerala Medical Council")
	f.SetCellValue("Sheet1", "C2", "Anil Menon")
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, _, err := Decode(FormatXLSX, buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3003", records[0].RegistrationNumber)
	assert.Equal(t, "Kerala Medical Council", records[0].Council)
	assert.Equal(t, "Anil Menon", records[0].Name)
}

func TestFormatFromName(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromName("active_doctors_clean.csv"))
	assert.Equal(t, FormatYAML, FormatFromName("blacklist.YML"))
	assert.Equal(t, FormatYAML, FormatFromName("registry/blacklist.yaml"))
	assert.Equal(t, FormatXLSX, FormatFromName("nmc-export.xlsx"))
	assert.Equal(t, FormatCSV, FormatFromName("no-extension"))
}

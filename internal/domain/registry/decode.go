package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/360EntSecGroup-Skylar/excelize"
	"gopkg.in/yaml.v3"
)

// ErrMissingColumns is returned when a tabular source has neither a
// registration number nor a council column.
var ErrMissingColumns = errors.New("registry source has no registration_number or state_medical_council column")

// Decode parses a registry stream in the given format.
// It returns the decoded records and the number of rows skipped because
// they carried neither a registration number nor a council.
func Decode(format Format, r io.Reader) ([]PractitionerRecord, int, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(r)
	case FormatYAML:
		return decodeYAML(r)
	case FormatXLSX:
		return decodeXLSX(r)
	default:
		return nil, 0, fmt.Errorf("unsupported registry format %q", format)
	}
}

func decodeCSV(r io.Reader) ([]PractitionerRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}
	return fromTable(header, rows)
}

// fromTable maps a header row plus data rows onto records.
func fromTable(header []string, rows [][]string) ([]PractitionerRecord, int, error) {
	cols := make([]string, len(header))
	hasKey := false
	for i, h := range header {
		cols[i] = canonicalColumn(h)
		if cols[i] == "registration_number" || cols[i] == "state_medical_council" {
			hasKey = true
		}
	}
	if !hasKey {
		return nil, 0, ErrMissingColumns
	}

	records := make([]PractitionerRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		fields := make(map[string]string, len(cols))
		for i, v := range row {
			if i >= len(cols) || cols[i] == "" {
				continue
			}
			fields[cols[i]] = v
		}
		rec, ok := recordFromFields(fields)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

type yamlRegistry struct {
	Practitioners []map[string]interface{} `yaml:"practitioners"`
}

func decodeYAML(r io.Reader) ([]PractitionerRecord, int, error) {
	var doc yamlRegistry
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("decode yaml registry: %w", err)
	}

	records := make([]PractitionerRecord, 0, len(doc.Practitioners))
	skipped := 0
	for _, item := range doc.Practitioners {
		fields := make(map[string]string, len(item))
		for k, v := range item {
			if v == nil {
				continue
			}
			fields[canonicalColumn(k)] = fmt.Sprint(v)
		}
		rec, ok := recordFromFields(fields)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// decodeXLSX reads the first worksheet of a workbook; the first row is the
// header.
func decodeXLSX(r io.Reader) ([]PractitionerRecord, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("open xlsx registry: %w", err)
	}
	sheets := f.GetSheetMap()
	if len(sheets) == 0 {
		return nil, 0, nil
	}
	ids := make([]int, 0, len(sheets))
	for id := range sheets {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := f.GetRows(sheets[ids[0]])
	if len(rows) == 0 {
		return nil, 0, nil
	}
	return fromTable(rows[0], rows[1:])
}

package registry

import "strings"

// Collection identifies which registry a record was loaded from.
type Collection string

const (
	CollectionActive      Collection = "ACTIVE"
	CollectionBlacklisted Collection = "BLACKLISTED"
)

// PractitionerRecord is one row of an external practitioner registry.
// Columns beyond the named ones are kept in Extra.
type PractitionerRecord struct {
	RegistrationNumber string            `json:"registration_number" yaml:"registration_number"`
	Council            string            `json:"state_medical_council" yaml:"state_medical_council"`
	Name               string            `json:"name,omitempty" yaml:"name,omitempty"`
	Qualification      string            `json:"qualification,omitempty" yaml:"qualification,omitempty"`
	QualificationYear  string            `json:"qualification_year,omitempty" yaml:"qualification_year,omitempty"`
	University         string            `json:"university_name,omitempty" yaml:"university_name,omitempty"`
	Email              string            `json:"email,omitempty" yaml:"email,omitempty"`
	DateOfRegistration string            `json:"date_of_registration,omitempty" yaml:"date_of_registration,omitempty"`
	Extra              map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Detail is the result of a registry lookup by registration number.
type Detail struct {
	Collection Collection         `json:"status"`
	Record     PractitionerRecord `json:"practitioner"`
}

// Stats summarises a loaded snapshot.
type Stats struct {
	TotalActive          int      `json:"total_active_doctors"`
	TotalBlacklisted     int      `json:"total_blacklisted_doctors"`
	ActiveCouncils       []string `json:"state_councils_active"`
	ActiveQualifications []string `json:"qualifications_active"`
}

// NormalizeNumber canonicalises a registration number for lookups.
// Registration numbers compare exactly after trimming.
func NormalizeNumber(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeCouncil canonicalises a council name for lookups. Council names
// compare case-insensitively with internal whitespace collapsed.
func NormalizeCouncil(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// column aliases seen in published registry exports
var columnAliases = map[string]string{
	"registration_number":     "registration_number",
	"registration_no":         "registration_number",
	"reg_no":                  "registration_number",
	"nmc_registration_number": "registration_number",
	"state_medical_council":   "state_medical_council",
	"medical_council":         "state_medical_council",
	"council":                 "state_medical_council",
	"name":                    "name",
	"doctor_name":             "name",
	"qualification":           "qualification",
	"qualification_1":         "qualification",
	"qualification_year":      "qualification_year",
	"qualification_1_year":    "qualification_year",
	"university_name":         "university_name",
	"university":              "university_name",
	"email":                   "email",
	"date_of_registration":    "date_of_registration",
}

func canonicalColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.Join(strings.Fields(h), "_")
	if c, ok := columnAliases[h]; ok {
		return c
	}
	return h
}

// recordFromFields builds a record from a canonical-column → value map.
// It reports false when the row carries neither a registration number nor a
// council, since such a row can never match.
func recordFromFields(fields map[string]string) (PractitionerRecord, bool) {
	var r PractitionerRecord
	for k, v := range fields {
		v = strings.TrimSpace(v)
		switch k {
		case "registration_number":
			r.RegistrationNumber = v
		case "state_medical_council":
			r.Council = v
		case "name":
			r.Name = v
		case "qualification":
			r.Qualification = v
		case "qualification_year":
			r.QualificationYear = v
		case "university_name":
			r.University = v
		case "email":
			r.Email = v
		case "date_of_registration":
			r.DateOfRegistration = v
		default:
			if v == "" {
				continue
			}
			if r.Extra == nil {
				r.Extra = make(map[string]string)
			}
			r.Extra[k] = v
		}
	}
	return r, r.RegistrationNumber != "" || r.Council != ""
}

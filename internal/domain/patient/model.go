package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Only the fields needed for an
// emergency bundle are kept here.
type Patient struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	PatientCode              string     `db:"patient_code" json:"patient_code"`
	FirstName                string     `db:"first_name" json:"first_name"`
	LastName                 string     `db:"last_name" json:"last_name"`
	Email                    string     `db:"email" json:"email"`
	Phone                    string     `db:"phone_number" json:"phone_number"`
	DateOfBirth              *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender                   *string    `db:"gender" json:"gender,omitempty"`
	BloodGroup               *string    `db:"blood_group" json:"blood_group,omitempty"`
	Allergies                string     `db:"allergies" json:"allergies"`
	ChronicDiseases          string     `db:"chronic_diseases" json:"chronic_diseases"`
	EmergencyContactName     string     `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone    string     `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	EmergencyContactRelation string     `db:"emergency_contact_relation" json:"emergency_contact_relation"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}

// EmergencyContact is nil when no contact name or phone is on file.
func (p *Patient) EmergencyContact() *EmergencyContact {
	if p.EmergencyContactName == "" && p.EmergencyContactPhone == "" {
		return nil
	}
	return &EmergencyContact{
		Name:     p.EmergencyContactName,
		Phone:    p.EmergencyContactPhone,
		Relation: p.EmergencyContactRelation,
	}
}

type EmergencyContact struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation,omitempty"`
}

// RecordType classifies a medical document.
type RecordType string

const (
	RecordPrescription     RecordType = "PRESCRIPTION"
	RecordLabResult        RecordType = "LAB_RESULT"
	RecordImaging          RecordType = "IMAGING"
	RecordDischargeSummary RecordType = "DISCHARGE_SUMMARY"
	RecordOther            RecordType = "OTHER"
)

func (r RecordType) Valid() bool {
	switch r {
	case RecordPrescription, RecordLabResult, RecordImaging, RecordDischargeSummary, RecordOther:
		return true
	}
	return false
}

// MedicalDocument describes a stored record. File contents live elsewhere;
// only the descriptor is handed out.
type MedicalDocument struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	RecordType   RecordType `db:"record_type" json:"record_type"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description,omitempty"`
	HospitalName string     `db:"hospital_name" json:"hospital_name,omitempty"`
	DoctorName   string     `db:"doctor_name" json:"doctor_name,omitempty"`
	DateOfRecord *time.Time `db:"date_of_record" json:"date_of_record,omitempty"`
	FileKey      *string    `db:"file_key" json:"-"`
	UploadedAt   time.Time  `db:"uploaded_at" json:"uploaded_at"`
}

func (d *MedicalDocument) HasFile() bool {
	return d.FileKey != nil && *d.FileKey != ""
}

var bloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// NewPatientCode returns "PT" followed by eight upper-case hex digits.
func NewPatientCode() string {
	return "PT" + strings.ToUpper(uuid.NewString()[:8])
}

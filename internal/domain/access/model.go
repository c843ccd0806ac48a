package access

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/medcard/medcard/internal/domain/auditlog"
	"github.com/medcard/medcard/internal/domain/patient"
)

var (
	// ErrAuditWriteFailed means the attempt was decided but could not be
	// recorded, so no decision is returned.
	ErrAuditWriteFailed = errors.New("audit write failed")
	// ErrStorageUnavailable means a store needed to reach a decision failed.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUnknownPractitioner means the caller has no practitioner record.
	ErrUnknownPractitioner = errors.New("unknown practitioner")
	ErrInvalidRequest      = errors.New("invalid access request")
)

// RequestError lists the fields that make a request structurally invalid.
// It unwraps to ErrInvalidRequest.
type RequestError struct {
	Fields errsx.Map
}

func (e *RequestError) Error() string {
	return ErrInvalidRequest.Error() + ": " + e.Fields.Error()
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// DenialReason explains a denied attempt.
type DenialReason string

const (
	DenyPendingVerification DenialReason = "PENDING_VERIFICATION"
	DenyPatientNotFound     DenialReason = "PATIENT_NOT_FOUND"
	DenyBlacklisted         DenialReason = "BLACKLISTED"
	DenyNotInRegistry       DenialReason = "NOT_IN_REGISTRY"
)

func (r DenialReason) Message() string {
	switch r {
	case DenyPendingVerification:
		return "Your account is pending verification by an administrator."
	case DenyPatientNotFound:
		return "No patient matches the supplied identifier."
	case DenyBlacklisted:
		return "Access denied: the supplied credentials appear on the blacklisted practitioners registry."
	case DenyNotInRegistry:
		return "Access denied: the supplied credentials were not found in the authorized practitioners registry."
	}
	return string(r)
}

// Request is one attempt by a practitioner to open a patient's card.
// Blank RegistrationNumber or Council fall back to the practitioner's own
// registration details.
type Request struct {
	PractitionerID     uuid.UUID
	RegistrationNumber string
	Council            string
	PatientRef         string
	Category           auditlog.AccessType
	Justification      string
	IPAddress          string
	UserAgent          string
}

func (r Request) validate() error {
	errs := make(errsx.Map)
	if r.PractitionerID == uuid.Nil {
		errs.Set("practitioner_id", "practitioner is required")
	}
	if strings.TrimSpace(r.PatientRef) == "" {
		errs.Set("patient_id", "patient identifier is required")
	}
	if !r.Category.Valid() {
		errs.Set("access_type", "access_type must be EMERGENCY, AUTHORIZED or ROUTINE")
	}
	if strings.TrimSpace(r.Justification) == "" {
		errs.Set("reason", "a justification is required")
	}
	if !errs.IsEmpty() {
		return &RequestError{Fields: errs}
	}
	return nil
}

// Decision is the result of an access attempt. Bundle is set only when
// access was granted.
type Decision struct {
	EntryID          uuid.UUID                 `json:"access_log_id"`
	Outcome          auditlog.Decision         `json:"decision"`
	Reason           DenialReason              `json:"reason,omitempty"`
	Message          string                    `json:"message,omitempty"`
	ValidationStatus auditlog.ValidationStatus `json:"validation_status"`
	Bundle           *Bundle                   `json:"bundle,omitempty"`
}

func (d *Decision) Granted() bool { return d.Outcome == auditlog.DecisionGranted }

// Bundle is the read-only view of a patient handed out on a grant.
type Bundle struct {
	Patient          Demographics              `json:"patient"`
	EmergencyContact *patient.EmergencyContact `json:"emergency_contact,omitempty"`
	Documents        []DocumentDescriptor      `json:"documents"`
}

type Demographics struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	PatientCode     string     `json:"patient_code"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	Gender          *string    `json:"gender,omitempty"`
	BloodGroup      *string    `json:"blood_group,omitempty"`
	Allergies       string     `json:"allergies"`
	ChronicDiseases string     `json:"chronic_diseases"`
}

type DocumentDescriptor struct {
	ID           uuid.UUID          `json:"id"`
	RecordType   patient.RecordType `json:"record_type"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	HospitalName string             `json:"hospital_name,omitempty"`
	DoctorName   string             `json:"doctor_name,omitempty"`
	DateOfRecord *time.Time         `json:"date_of_record,omitempty"`
	UploadedAt   time.Time          `json:"uploaded_at"`
	HasFile      bool               `json:"has_file"`
}

func newBundle(p *patient.Patient, docs []*patient.MedicalDocument) *Bundle {
	b := &Bundle{
		Patient: Demographics{
			PatientID:       p.ID,
			PatientCode:     p.PatientCode,
			FirstName:       p.FirstName,
			LastName:        p.LastName,
			DateOfBirth:     p.DateOfBirth,
			Gender:          p.Gender,
			BloodGroup:      p.BloodGroup,
			Allergies:       p.Allergies,
			ChronicDiseases: p.ChronicDiseases,
		},
		EmergencyContact: p.EmergencyContact(),
		Documents:        make([]DocumentDescriptor, 0, len(docs)),
	}
	for _, d := range docs {
		b.Documents = append(b.Documents, DocumentDescriptor{
			ID:           d.ID,
			RecordType:   d.RecordType,
			Title:        d.Title,
			Description:  d.Description,
			HospitalName: d.HospitalName,
			DoctorName:   d.DoctorName,
			DateOfRecord: d.DateOfRecord,
			UploadedAt:   d.UploadedAt,
			HasFile:      d.HasFile(),
		})
	}
	return b
}

package auditlog

import (
	"time"

	"github.com/google/uuid"
)

// AccessType is the category of access requested.
type AccessType string

const (
	AccessEmergency  AccessType = "EMERGENCY"
	AccessAuthorized AccessType = "AUTHORIZED"
	AccessRoutine    AccessType = "ROUTINE"
)

func (a AccessType) Valid() bool {
	switch a {
	case AccessEmergency, AccessAuthorized, AccessRoutine:
		return true
	}
	return false
}

// ValidationStatus is the registry validation outcome recorded for an
// attempt. PENDING means validation was not performed.
type ValidationStatus string

const (
	StatusAuthorized  ValidationStatus = "AUTHORIZED"
	StatusBlacklisted ValidationStatus = "BLACKLISTED"
	StatusNotFound    ValidationStatus = "NOT_FOUND"
	StatusPending     ValidationStatus = "PENDING"
)

func (s ValidationStatus) Valid() bool {
	switch s {
	case StatusAuthorized, StatusBlacklisted, StatusNotFound, StatusPending:
		return true
	}
	return false
}

// Decision is the final outcome of an access attempt.
type Decision string

const (
	DecisionGranted Decision = "GRANTED"
	DecisionDenied  Decision = "DENIED"
)

func (d Decision) Valid() bool {
	return d == DecisionGranted || d == DecisionDenied
}

// AccessLogEntry maps to the access_log table. Entries are append-only:
// after Append only RecordsViewed may change.
type AccessLogEntry struct {
	ID                     uuid.UUID        `db:"id" json:"id"`
	PractitionerID         uuid.UUID        `db:"practitioner_id" json:"practitioner_id"`
	PatientID              *uuid.UUID       `db:"patient_id" json:"patient_id,omitempty"`
	PatientRef             string           `db:"patient_ref" json:"patient_ref"`
	AccessType             AccessType       `db:"access_type" json:"access_type"`
	Reason                 string           `db:"access_reason" json:"access_reason"`
	ValidationStatus       ValidationStatus `db:"validation_status" json:"validation_status"`
	Decision               Decision         `db:"decision" json:"decision"`
	DenialReason           string           `db:"denial_reason" json:"denial_reason,omitempty"`
	IPAddress              string           `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent              string           `db:"user_agent" json:"user_agent,omitempty"`
	RecordsViewed          int              `db:"records_viewed" json:"records_viewed"`
	RegistrationNumberUsed string           `db:"registration_number_used" json:"registration_number_used,omitempty"`
	CouncilUsed            string           `db:"state_council_used" json:"state_council_used,omitempty"`
	CreatedAt              time.Time        `db:"created_at" json:"created_at"`
}

// Statistics aggregates the whole ledger for reporting.
type Statistics struct {
	Total              int                      `json:"total"`
	ByAccessType       map[AccessType]int       `json:"by_access_type"`
	ByValidationStatus map[ValidationStatus]int `json:"by_validation_status"`
	ByDecision         map[Decision]int         `json:"by_decision"`
}

func newStatistics() *Statistics {
	return &Statistics{
		ByAccessType:       make(map[AccessType]int),
		ByValidationStatus: make(map[ValidationStatus]int),
		ByDecision:         make(map[Decision]int),
	}
}

// PractitionerStatistics summarises one practitioner's access history.
type PractitionerStatistics struct {
	PractitionerID     uuid.UUID  `json:"practitioner_id"`
	TotalAccesses      int        `json:"total_accesses"`
	EmergencyAccesses  int        `json:"emergency_accesses"`
	AuthorizedAccesses int        `json:"authorized_accesses"`
	DeniedAccesses     int        `json:"denied_accesses"`
	UniquePatients     int        `json:"unique_patients"`
	LastAccess         *time.Time `json:"last_access,omitempty"`
}

func (s *Statistics) add(at AccessType, status ValidationStatus, dec Decision, n int) {
	s.Total += n
	s.ByAccessType[at] += n
	s.ByValidationStatus[status] += n
	s.ByDecision[dec] += n
}

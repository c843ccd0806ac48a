// Package access decides whether a practitioner may open a patient's
// record and writes exactly one audit entry for every attempt.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcard/medcard/internal/domain/auditlog"
	"github.com/medcard/medcard/internal/domain/patient"
	"github.com/medcard/medcard/internal/domain/practitioner"
	"github.com/medcard/medcard/internal/domain/validation"
)

type PractitionerStore interface {
	Get(ctx context.Context, id uuid.UUID) (*practitioner.Practitioner, error)
}

type PatientStore interface {
	Resolve(ctx context.Context, ref string) (*patient.Patient, error)
	Documents(ctx context.Context, patientID uuid.UUID) ([]*patient.MedicalDocument, error)
}

type AuditLedger interface {
	Append(ctx context.Context, e *auditlog.AccessLogEntry) error
}

// Recorder receives one observation per decided attempt.
type Recorder interface {
	ObserveDecision(decision, reason, validationStatus string)
	AuditWriteFailed()
}

type nopRecorder struct{}

func (nopRecorder) ObserveDecision(string, string, string) {}
func (nopRecorder) AuditWriteFailed()                      {}

type Service struct {
	practitioners PractitionerStore
	patients      PatientStore
	validator     validation.Validator
	ledger        AuditLedger
	recorder      Recorder
	logger        zerolog.Logger
}

func NewService(practitioners PractitionerStore, patients PatientStore, validator validation.Validator,
	ledger AuditLedger, recorder Recorder, logger zerolog.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		practitioners: practitioners,
		patients:      patients,
		validator:     validator,
		ledger:        ledger,
		recorder:      recorder,
		logger:        logger.With().Str("component", "access").Logger(),
	}
}

// RequestAccess runs one attempt through the gates below, stopping at the
// first denial:
//
//  1. the practitioner is not verified -> PENDING_VERIFICATION
//     (credentials are not validated)
//  2. the patient does not exist -> PATIENT_NOT_FOUND
//  3. the credentials are blacklisted -> BLACKLISTED
//  4. the credentials are unknown and the category is not EMERGENCY
//     -> NOT_IN_REGISTRY
//
// Anything else is granted with a bundle of the patient's record. Every
// attempt that reaches a decision is written to the ledger before it is
// returned; if that write fails the caller gets ErrAuditWriteFailed and no
// decision. Identical requests are recorded separately.
func (s *Service) RequestAccess(ctx context.Context, req Request) (*Decision, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.PatientRef = strings.TrimSpace(req.PatientRef)

	pract, err := s.practitioners.Get(ctx, req.PractitionerID)
	if errors.Is(err, practitioner.ErrNotFound) {
		return nil, ErrUnknownPractitioner
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load practitioner: %w", ErrStorageUnavailable, err)
	}

	regNumber, council := req.RegistrationNumber, req.Council
	if strings.TrimSpace(regNumber) == "" {
		regNumber = pract.RegistrationNumber
	}
	if strings.TrimSpace(council) == "" {
		council = pract.Council
	}

	entry := &auditlog.AccessLogEntry{
		PractitionerID:         pract.ID,
		PatientRef:             req.PatientRef,
		AccessType:             req.Category,
		Reason:                 req.Justification,
		ValidationStatus:       auditlog.StatusPending,
		IPAddress:              req.IPAddress,
		UserAgent:              req.UserAgent,
		RegistrationNumberUsed: regNumber,
		CouncilUsed:            council,
	}

	// The patient is resolved before the verification gate only so that an
	// unverified practitioner's attempt is linked into the patient's history.
	p, err := s.patients.Resolve(ctx, req.PatientRef)
	switch {
	case err == nil:
		entry.PatientID = &p.ID
	case !errors.Is(err, patient.ErrNotFound):
		return nil, fmt.Errorf("%w: resolve patient: %w", ErrStorageUnavailable, err)
	}

	if !pract.IsVerified {
		return s.record(ctx, entry, DenyPendingVerification, nil)
	}
	if entry.PatientID == nil {
		return s.record(ctx, entry, DenyPatientNotFound, nil)
	}

	res := s.validator.Validate(regNumber, council)
	entry.ValidationStatus = statusFor(res.Outcome)
	s.logger.Debug().
		Str("practitioner_id", pract.ID.String()).
		Str("outcome", string(res.Outcome)).
		Str("matched_on", string(res.MatchedOn)).
		Msg("credentials validated")

	if reason := policy(res.Outcome, req.Category); reason != "" {
		return s.record(ctx, entry, reason, nil)
	}

	docs, err := s.patients.Documents(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load documents: %w", ErrStorageUnavailable, err)
	}
	return s.record(ctx, entry, "", newBundle(p, docs))
}

// policy maps a validation outcome to a denial reason, or "" to grant.
// Unknown credentials are tolerated only for emergencies.
func policy(outcome validation.Outcome, category auditlog.AccessType) DenialReason {
	switch outcome {
	case validation.OutcomeBlacklisted:
		return DenyBlacklisted
	case validation.OutcomeAuthorized:
		return ""
	}
	if category == auditlog.AccessEmergency {
		return ""
	}
	return DenyNotInRegistry
}

func statusFor(o validation.Outcome) auditlog.ValidationStatus {
	switch o {
	case validation.OutcomeAuthorized:
		return auditlog.StatusAuthorized
	case validation.OutcomeBlacklisted:
		return auditlog.StatusBlacklisted
	}
	return auditlog.StatusNotFound
}

// record appends the entry for a decided attempt and builds the result.
// An empty reason means the attempt was granted.
func (s *Service) record(ctx context.Context, entry *auditlog.AccessLogEntry, reason DenialReason, bundle *Bundle) (*Decision, error) {
	entry.Decision = auditlog.DecisionGranted
	if reason != "" {
		entry.Decision = auditlog.DecisionDenied
		entry.DenialReason = string(reason)
	}

	if err := s.ledger.Append(ctx, entry); err != nil {
		s.recorder.AuditWriteFailed()
		s.logger.Error().Err(err).
			Str("practitioner_id", entry.PractitionerID.String()).
			Str("patient_ref", entry.PatientRef).
			Str("decision", string(entry.Decision)).
			Msg("failed to write access log entry")
		return nil, fmt.Errorf("%w: %w", ErrAuditWriteFailed, err)
	}

	s.recorder.ObserveDecision(string(entry.Decision), string(reason), string(entry.ValidationStatus))

	ev := s.logger.Info()
	if reason != "" {
		ev = s.logger.Warn().Str("reason", string(reason))
	}
	ev.Str("access_log_id", entry.ID.String()).
		Str("practitioner_id", entry.PractitionerID.String()).
		Str("patient_ref", entry.PatientRef).
		Str("access_type", string(entry.AccessType)).
		Str("validation_status", string(entry.ValidationStatus)).
		Str("decision", string(entry.Decision)).
		Str("ip", entry.IPAddress).
		Msg("access_decision")

	d := &Decision{
		EntryID:          entry.ID,
		Outcome:          entry.Decision,
		Reason:           reason,
		ValidationStatus: entry.ValidationStatus,
		Bundle:           bundle,
	}
	if reason != "" {
		d.Message = reason.Message()
	}
	return d, nil
}

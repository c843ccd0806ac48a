package auditlog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotOwner is returned when a practitioner updates an entry they did not
// create.
var ErrNotOwner = errors.New("access log entry belongs to another practitioner")

type Service struct {
	ledger Ledger
}

func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// Append checks the entry is well formed and writes it to the ledger.
func (s *Service) Append(ctx context.Context, e *AccessLogEntry) error {
	if e.PractitionerID == uuid.Nil {
		return fmt.Errorf("practitioner_id is required")
	}
	if !e.AccessType.Valid() {
		return fmt.Errorf("invalid access_type %q", e.AccessType)
	}
	if !e.ValidationStatus.Valid() {
		return fmt.Errorf("invalid validation_status %q", e.ValidationStatus)
	}
	if !e.Decision.Valid() {
		return fmt.Errorf("invalid decision %q", e.Decision)
	}
	if e.Decision == DecisionDenied && strings.TrimSpace(e.DenialReason) == "" {
		return fmt.Errorf("denial_reason is required for denied access")
	}
	if e.RecordsViewed < 0 {
		return fmt.Errorf("records_viewed must not be negative")
	}
	return s.ledger.Append(ctx, e)
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*AccessLogEntry, error) {
	return s.ledger.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*AccessLogEntry, int, error) {
	return s.ledger.List(ctx, limit, offset)
}

func (s *Service) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error) {
	return s.ledger.ListByPractitioner(ctx, practitionerID, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error) {
	return s.ledger.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	return s.ledger.Statistics(ctx)
}

func (s *Service) PractitionerStatistics(ctx context.Context, practitionerID uuid.UUID) (*PractitionerStatistics, error) {
	return s.ledger.PractitionerStatistics(ctx, practitionerID)
}

// UpdateRecordsViewed sets the number of documents practitionerID opened
// under the given entry. Only the practitioner who made the attempt may
// update it, and only granted attempts can have viewed records.
func (s *Service) UpdateRecordsViewed(ctx context.Context, entryID, practitionerID uuid.UUID, count int) error {
	if count < 0 {
		return fmt.Errorf("records_viewed must not be negative")
	}
	e, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if e.PractitionerID != practitionerID {
		return ErrNotOwner
	}
	if e.Decision != DecisionGranted {
		return fmt.Errorf("records cannot be viewed under a denied access attempt")
	}
	return s.ledger.UpdateRecordsViewed(ctx, entryID, count)
}

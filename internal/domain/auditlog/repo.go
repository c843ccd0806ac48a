package auditlog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("access log entry not found")

// Ledger is the append-only store of access attempts. There is deliberately
// no Update or Delete: UpdateRecordsViewed is the only mutation.
// List methods return entries newest first.
type Ledger interface {
	Append(ctx context.Context, e *AccessLogEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessLogEntry, error)
	List(ctx context.Context, limit, offset int) ([]*AccessLogEntry, int, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error)
	Statistics(ctx context.Context) (*Statistics, error)
	PractitionerStatistics(ctx context.Context, practitionerID uuid.UUID) (*PractitionerStatistics, error)
	UpdateRecordsViewed(ctx context.Context, id uuid.UUID, count int) error
}

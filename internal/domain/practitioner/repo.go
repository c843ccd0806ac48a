package practitioner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("practitioner not found")
	ErrAlreadyVerified = errors.New("practitioner is already verified")
)

type Repository interface {
	Create(ctx context.Context, p *Practitioner) error
	GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	GetByDoctorCode(ctx context.Context, code string) (*Practitioner, error)
	List(ctx context.Context, verified *bool, limit, offset int) ([]*Practitioner, int, error)
	// MarkVerified flips is_verified from false to true. It returns
	// ErrAlreadyVerified when the practitioner was verified before.
	MarkVerified(ctx context.Context, id uuid.UUID, by string, at time.Time) error
}

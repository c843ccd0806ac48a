package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	AddDocument(ctx context.Context, d *MedicalDocument) error
	ListDocuments(ctx context.Context, patientID uuid.UUID) ([]*MedicalDocument, error)
}

package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	if p.Phone == "" {
		return fmt.Errorf("phone_number is required")
	}
	if p.BloodGroup != nil && !bloodGroups[*p.BloodGroup] {
		return fmt.Errorf("invalid blood_group %q", *p.BloodGroup)
	}
	if p.Gender != nil {
		switch *p.Gender {
		case "M", "F", "O":
		default:
			return fmt.Errorf("gender must be M, F or O")
		}
	}
	p.PatientCode = NewPatientCode()
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Resolve finds a patient by id or by patient code ("PT..."), the two forms
// a smart card carries. It returns ErrNotFound when neither matches.
func (s *Service) Resolve(ctx context.Context, ref string) (*Patient, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}
	if id, err := uuid.Parse(ref); err == nil {
		return s.repo.GetByID(ctx, id)
	}
	return s.repo.GetByCode(ctx, strings.ToUpper(ref))
}

func (s *Service) Documents(ctx context.Context, patientID uuid.UUID) ([]*MedicalDocument, error) {
	return s.repo.ListDocuments(ctx, patientID)
}

func (s *Service) AddDocument(ctx context.Context, d *MedicalDocument) error {
	if d.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !d.RecordType.Valid() {
		return fmt.Errorf("invalid record_type %q", d.RecordType)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := s.repo.GetByID(ctx, d.PatientID); err != nil {
		return err
	}
	return s.repo.AddDocument(ctx, d)
}

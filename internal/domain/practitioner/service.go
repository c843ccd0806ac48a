package practitioner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, p *Practitioner) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if strings.TrimSpace(p.RegistrationNumber) == "" {
		return fmt.Errorf("registration_number is required")
	}
	if strings.TrimSpace(p.Council) == "" {
		return fmt.Errorf("state_medical_council is required")
	}
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	p.RegistrationNumber = strings.TrimSpace(p.RegistrationNumber)
	p.Council = strings.TrimSpace(p.Council)
	p.DoctorCode = NewDoctorCode()
	p.IsVerified = false
	p.VerifiedAt = nil
	p.VerifiedBy = nil
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByDoctorCode(ctx context.Context, code string) (*Practitioner, error) {
	return s.repo.GetByDoctorCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Service) List(ctx context.Context, verified *bool, limit, offset int) ([]*Practitioner, int, error) {
	return s.repo.List(ctx, verified, limit, offset)
}

// Verify marks the practitioner verified on behalf of an administrator.
// Verification happens once; a second call returns ErrAlreadyVerified.
func (s *Service) Verify(ctx context.Context, id uuid.UUID, by string) (*Practitioner, error) {
	if by == "" {
		return nil, fmt.Errorf("verifying administrator is required")
	}
	if err := s.repo.MarkVerified(ctx, id, by, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

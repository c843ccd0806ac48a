package practitioner

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Practitioner maps to the practitioner table. A practitioner is created
// unverified and verified exactly once by an administrator.
type Practitioner struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	DoctorCode         string     `db:"doctor_code" json:"doctor_code"`
	RegistrationNumber string     `db:"registration_number" json:"registration_number"`
	Council            string     `db:"state_medical_council" json:"state_medical_council"`
	FirstName          string     `db:"first_name" json:"first_name"`
	LastName           string     `db:"last_name" json:"last_name"`
	Email              string     `db:"email" json:"email"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	Specialization     *string    `db:"specialization" json:"specialization,omitempty"`
	HospitalName       *string    `db:"hospital_name" json:"hospital_name,omitempty"`
	IsVerified         bool       `db:"is_verified" json:"is_verified"`
	VerifiedAt         *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	VerifiedBy         *string    `db:"verified_by" json:"verified_by,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Practitioner) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// NewDoctorCode returns "DR" followed by eight upper-case hex digits.
func NewDoctorCode() string {
	return "DR" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

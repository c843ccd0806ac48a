package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	RoleAdmin        = "admin"
	RolePractitioner = "practitioner"
	RolePatient      = "patient"
)

// Identity is the authenticated caller. It is one of PractitionerIdentity,
// PatientIdentity or AdminIdentity and is resolved once per request.
type Identity interface {
	Role() string
	Subject() string
	isIdentity()
}

type PractitionerIdentity struct {
	PractitionerID uuid.UUID
}

func (PractitionerIdentity) Role() string      { return RolePractitioner }
func (p PractitionerIdentity) Subject() string { return p.PractitionerID.String() }
func (PractitionerIdentity) isIdentity()       {}

type PatientIdentity struct {
	PatientID uuid.UUID
}

func (PatientIdentity) Role() string      { return RolePatient }
func (p PatientIdentity) Subject() string { return p.PatientID.String() }
func (PatientIdentity) isIdentity()       {}

type AdminIdentity struct {
	User string
}

func (AdminIdentity) Role() string      { return RoleAdmin }
func (a AdminIdentity) Subject() string { return a.User }
func (AdminIdentity) isIdentity()       {}

// ResolveIdentity maps a token subject and its roles to an Identity. When a
// token carries several roles admin wins over practitioner, which wins over
// patient. Practitioner and patient subjects must be UUIDs.
func ResolveIdentity(subject string, roles []string) (Identity, error) {
	has := func(role string) bool {
		for _, r := range roles {
			if r == role {
				return true
			}
		}
		return false
	}

	switch {
	case has(RoleAdmin):
		return AdminIdentity{User: subject}, nil
	case has(RolePractitioner):
		id, err := uuid.Parse(subject)
		if err != nil {
			return nil, fmt.Errorf("practitioner subject %q is not a uuid", subject)
		}
		return PractitionerIdentity{PractitionerID: id}, nil
	case has(RolePatient):
		id, err := uuid.Parse(subject)
		if err != nil {
			return nil, fmt.Errorf("patient subject %q is not a uuid", subject)
		}
		return PatientIdentity{PatientID: id}, nil
	}
	return nil, fmt.Errorf("no recognised role in %v", roles)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller, or nil for unauthenticated contexts.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

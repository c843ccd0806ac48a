// Package validation decides whether a set of practitioner credentials is
// authorized, blacklisted or unknown according to the loaded registries.
package validation

import (
	"github.com/medcard/medcard/internal/domain/registry"
)

// Outcome is the result of validating a set of credentials.
type Outcome string

const (
	OutcomeAuthorized  Outcome = "AUTHORIZED"
	OutcomeBlacklisted Outcome = "BLACKLISTED"
	OutcomeNotFound    Outcome = "NOT_FOUND"
)

// MatchField names the credential field that produced a registry match.
type MatchField string

const (
	MatchNone               MatchField = ""
	MatchRegistrationNumber MatchField = "registration_number"
	MatchCouncil            MatchField = "council"
)

// Result carries the outcome plus the registry row that produced it.
// Record is nil for OutcomeNotFound.
type Result struct {
	Outcome   Outcome
	MatchedOn MatchField
	Record    *registry.PractitionerRecord
}

// Validator is implemented by Engine. The access orchestrator depends on
// this interface so tests can count calls.
type Validator interface {
	Validate(registrationNumber, council string) Result
}

// Engine validates credentials against a registry. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	reg registry.Registry
}

func NewEngine(reg registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// Validate checks the supplied credentials, in this order:
//
//  1. the registration number or the council matches a blacklisted entry
//     -> BLACKLISTED
//  2. the registration number or the council matches an authorized entry
//     -> AUTHORIZED
//  3. otherwise -> NOT_FOUND
//
// The blacklist is consulted first and unconditionally, so a practitioner
// present in both registries is BLACKLISTED. Either field matching is
// enough; blank fields never match. All lookups use one snapshot.
func (e *Engine) Validate(registrationNumber, council string) Result {
	snap := e.reg.Current()

	if r, ok := snap.BlacklistedByNumber(registrationNumber); ok {
		return Result{Outcome: OutcomeBlacklisted, MatchedOn: MatchRegistrationNumber, Record: &r}
	}
	if r, ok := snap.BlacklistedByCouncil(council); ok {
		return Result{Outcome: OutcomeBlacklisted, MatchedOn: MatchCouncil, Record: &r}
	}
	if r, ok := snap.ActiveByNumber(registrationNumber); ok {
		return Result{Outcome: OutcomeAuthorized, MatchedOn: MatchRegistrationNumber, Record: &r}
	}
	if r, ok := snap.ActiveByCouncil(council); ok {
		return Result{Outcome: OutcomeAuthorized, MatchedOn: MatchCouncil, Record: &r}
	}
	return Result{Outcome: OutcomeNotFound}
}

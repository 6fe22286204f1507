package model

// Outcome tags the result of a lookup against an external service so callers
// can tell "no match" apart from "the service failed".
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// Common outcome reasons.
const (
	ReasonNoCredentials = "no_credentials"
	ReasonNoResults     = "no_results"
	ReasonNoOwner       = "no_owner"
	ReasonTimeout       = "timeout"
	ReasonUnauthorized  = "unauthorized"
	ReasonNoContact     = "no_contact"
	ReasonCircuitOpen   = "circuit_open"
)

package escalation

import "errors"

// Engine errors.
var (
	// ErrEscalationNotFound is returned for unknown escalation ids.
	ErrEscalationNotFound = errors.New("escalation not found")

	// ErrEscalationDisabled is returned by Start when escalation is
	// administratively disabled. Callers should treat it as a structured
	// "not started" outcome rather than a hard failure.
	ErrEscalationDisabled = errors.New("escalation is disabled")

	// ErrNoMatchingRules is returned by Start when no rule matched the alert.
	ErrNoMatchingRules = errors.New("no matching rules for alert")
)

package rules

import "errors"

// Catalog errors.
var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrRuleExists   = errors.New("rule already exists")
)

// ValidationError describes a malformed rule. It is always surfaced to the
// caller of Add/Update, never silently dropped.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid rule: " + e.Field + ": " + e.Reason
}

// IsValidationError reports whether err is a rule validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package domain

import "time"

// Severity represents the severity level of an alert.
type Severity string

// Severity levels.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IsValid checks if the severity is one of the recognized levels.
func (s Severity) IsValid() bool {
	return s == SeverityCritical || s == SeverityWarning || s == SeverityInfo
}

// Alert is an incoming alert as seen by the escalation engine.
// The engine never mutates an alert; it only reads its fields to evaluate
// rule conditions and termination predicates. The Status field is owned by
// the upstream alerting pipeline.
type Alert struct {
	ID          string    `json:"id"`
	Severity    Severity  `json:"severity"`
	Status      string    `json:"status"`
	ServiceType string    `json:"service_type"`
	Component   string    `json:"component"`
	CreatedAt   time.Time `json:"created_at"`
}

// AgeMinutes returns the alert age in whole minutes at the given instant.
func (a Alert) AgeMinutes(now time.Time) int {
	return int(now.Sub(a.CreatedAt) / time.Minute)
}

// Field returns the value of a named alert field, used by termination
// predicates. Unknown fields resolve to an empty string.
func (a Alert) Field(name string) string {
	switch name {
	case "id":
		return a.ID
	case "severity":
		return string(a.Severity)
	case "status":
		return a.Status
	case "service_type":
		return a.ServiceType
	case "component":
		return a.Component
	}
	return ""
}

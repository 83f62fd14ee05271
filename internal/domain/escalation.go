package domain

import "time"

// EscalationStatus represents the lifecycle state of an escalation.
type EscalationStatus string

// Escalation statuses. Active is the only non-terminal state.
const (
	EscalationStatusActive          EscalationStatus = "active"
	EscalationStatusCompleted       EscalationStatus = "completed"
	EscalationStatusTerminated      EscalationStatus = "terminated"
	EscalationStatusMaxLevelReached EscalationStatus = "max_level_reached"
	EscalationStatusStopped         EscalationStatus = "stopped"
)

// IsTerminal reports whether the status permits no further transitions.
func (s EscalationStatus) IsTerminal() bool {
	return s != EscalationStatusActive
}

// ScheduledAction is a single planned notification step with an absolute
// trigger time. Contents are fixed once the schedule is built; only the
// Executed and Error fields mutate afterwards.
type ScheduledAction struct {
	ID              string    `json:"id"`
	RuleID          string    `json:"rule_id"`
	ActionIndex     int       `json:"action_index"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	Channels        []string  `json:"channels"`
	EscalationLevel int       `json:"escalation_level"`
	Executed        bool      `json:"executed"`
	Error           string    `json:"error,omitempty"`
}

// Escalation is one running instance of rule-driven action scheduling tied
// to a specific alert occurrence. Rules is a private snapshot taken at start;
// ScheduledActions is the combined action timeline of all matched rules,
// sorted ascending by scheduled time.
type Escalation struct {
	ID               string            `json:"id"`
	AlertID          string            `json:"alert_id"`
	Alert            Alert             `json:"alert"`
	Rules            []Rule            `json:"rules"`
	CurrentLevel     int               `json:"current_level"`
	ScheduledActions []ScheduledAction `json:"scheduled_actions"`
	Status           EscalationStatus  `json:"status"`
	StartedAt        time.Time         `json:"started_at"`
	LastEscalationAt time.Time         `json:"last_escalation_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	StoppedAt        *time.Time        `json:"stopped_at,omitempty"`
	StopReason       string            `json:"stop_reason,omitempty"`
}

// Clone returns a deep copy of the escalation, safe to hand to callers
// while the engine keeps mutating the original.
func (e *Escalation) Clone() *Escalation {
	out := *e

	out.Rules = make([]Rule, len(e.Rules))
	for i := range e.Rules {
		out.Rules[i] = e.Rules[i].Clone()
	}

	out.ScheduledActions = make([]ScheduledAction, len(e.ScheduledActions))
	for i, sa := range e.ScheduledActions {
		out.ScheduledActions[i] = sa
		out.ScheduledActions[i].Channels = append([]string(nil), sa.Channels...)
	}

	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	if e.StoppedAt != nil {
		t := *e.StoppedAt
		out.StoppedAt = &t
	}

	return &out
}

// PendingActions reports how many scheduled actions still await execution.
func (e *Escalation) PendingActions() int {
	n := 0
	for i := range e.ScheduledActions {
		if !e.ScheduledActions[i].Executed && e.ScheduledActions[i].Error == "" {
			n++
		}
	}
	return n
}

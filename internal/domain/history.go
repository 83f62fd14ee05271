package domain

import "time"

// HistoryAction identifies the kind of a history entry.
type HistoryAction string

// History actions.
const (
	HistoryActionStarted   HistoryAction = "started"
	HistoryActionExecuted  HistoryAction = "executed"
	HistoryActionCompleted HistoryAction = "completed"
	HistoryActionStopped   HistoryAction = "stopped"
)

// HistoryEntry is an immutable record of an escalation lifecycle or action
// event. Entries are append-only; they are never updated or deleted.
type HistoryEntry struct {
	ID              string        `json:"id"`
	EscalationID    string        `json:"escalation_id"`
	AlertID         string        `json:"alert_id,omitempty"`
	Action          HistoryAction `json:"action"`
	Timestamp       time.Time     `json:"timestamp"`
	RuleCount       int           `json:"rule_count,omitempty"`
	Channels        []string      `json:"channels,omitempty"`
	EscalationLevel int           `json:"escalation_level,omitempty"`
	Reason          string        `json:"reason,omitempty"`
}

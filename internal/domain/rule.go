package domain

import (
	"fmt"
	"strings"
	"time"
)

// Conditions describes which alerts a rule applies to. Every declared
// condition must hold for the rule to match (conjunctive semantics).
// Nil/empty fields are treated as "not declared" and do not constrain
// the match.
type Conditions struct {
	Severities          []Severity `json:"severity,omitempty"`
	ServiceTypes        []string   `json:"service_types,omitempty"`
	Component           string     `json:"component,omitempty"`
	DurationMinutes     *int       `json:"duration_minutes,omitempty"`
	Statuses            []string   `json:"status,omitempty"`
	OutsideWorkingHours *bool      `json:"outside_working_hours,omitempty"`
	WorkDaysOnly        *bool      `json:"work_days_only,omitempty"`
}

// IsEmpty reports whether no condition is declared at all. An empty
// condition set would match every alert, so the catalog rejects it.
func (c Conditions) IsEmpty() bool {
	return len(c.Severities) == 0 &&
		len(c.ServiceTypes) == 0 &&
		c.Component == "" &&
		c.DurationMinutes == nil &&
		len(c.Statuses) == 0 &&
		c.OutsideWorkingHours == nil &&
		c.WorkDaysOnly == nil
}

// HourRange is a daily working window in local hours (0-23).
// The end hour itself still counts as inside the window.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// WorkingHours configures working-hours evaluation for a rule.
type WorkingHours struct {
	Enabled  bool      `json:"enabled"`
	Hours    HourRange `json:"hours"`
	Timezone string    `json:"timezone,omitempty"`
	WorkDays []int     `json:"work_days,omitempty"` // 0-6, Sunday = 0; 7 accepted as Sunday
}

// Action is one planned notification step within a rule.
type Action struct {
	DelayMinutes        int      `json:"delay_minutes"`
	Channels            []string `json:"channels"`
	EscalationLevel     int      `json:"escalation_level"`
	NotifyManagers      bool     `json:"notify_managers,omitempty"`
	NotifyExecutives    bool     `json:"notify_executives,omitempty"`
	NotifyOncall        bool     `json:"notify_oncall,omitempty"`
	CreateIncident      bool     `json:"create_incident,omitempty"`
	CreateMajorIncident bool     `json:"create_major_incident,omitempty"`
}

// TerminationCondition is a typed alert-field predicate. An escalation
// terminates early when the named alert field equals the expected value.
type TerminationCondition struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Matches reports whether the predicate holds for the alert.
func (t TerminationCondition) Matches(alert Alert) bool {
	return alert.Field(t.Field) == t.Value
}

// ParseTerminationCondition parses the legacy "field:value" form used by
// externally authored rule files.
func ParseTerminationCondition(s string) (TerminationCondition, error) {
	field, value, ok := strings.Cut(s, ":")
	if !ok || field == "" {
		return TerminationCondition{}, fmt.Errorf("invalid termination condition %q: want field:value", s)
	}
	return TerminationCondition{Field: field, Value: value}, nil
}

// Rule is a named escalation policy mapping alert conditions to a timed
// sequence of notification actions.
type Rule struct {
	ID                    string                 `json:"id"`
	Name                  string                 `json:"name"`
	Description           string                 `json:"description,omitempty"`
	Enabled               bool                   `json:"enabled"`
	Priority              int                    `json:"priority"` // lower = more urgent, >= 1
	Conditions            Conditions             `json:"conditions"`
	Actions               []Action               `json:"actions"`
	WorkingHours          *WorkingHours          `json:"working_hours,omitempty"`
	TerminationConditions []TerminationCondition `json:"termination_conditions,omitempty"`
	MaxEscalations        *int                   `json:"max_escalations,omitempty"`
	Executions            int                    `json:"executions"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// Clone returns a deep copy of the rule. Escalations snapshot their matched
// rules at start so later catalog edits never affect an in-flight escalation.
func (r Rule) Clone() Rule {
	out := r

	out.Conditions.Severities = append([]Severity(nil), r.Conditions.Severities...)
	out.Conditions.ServiceTypes = append([]string(nil), r.Conditions.ServiceTypes...)
	out.Conditions.Statuses = append([]string(nil), r.Conditions.Statuses...)
	if r.Conditions.DurationMinutes != nil {
		v := *r.Conditions.DurationMinutes
		out.Conditions.DurationMinutes = &v
	}
	if r.Conditions.OutsideWorkingHours != nil {
		v := *r.Conditions.OutsideWorkingHours
		out.Conditions.OutsideWorkingHours = &v
	}
	if r.Conditions.WorkDaysOnly != nil {
		v := *r.Conditions.WorkDaysOnly
		out.Conditions.WorkDaysOnly = &v
	}

	out.Actions = make([]Action, len(r.Actions))
	for i, a := range r.Actions {
		out.Actions[i] = a
		out.Actions[i].Channels = append([]string(nil), a.Channels...)
	}

	if r.WorkingHours != nil {
		wh := *r.WorkingHours
		wh.WorkDays = append([]int(nil), r.WorkingHours.WorkDays...)
		out.WorkingHours = &wh
	}

	out.TerminationConditions = append([]TerminationCondition(nil), r.TerminationConditions...)

	if r.MaxEscalations != nil {
		v := *r.MaxEscalations
		out.MaxEscalations = &v
	}

	return out
}

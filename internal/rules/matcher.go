package rules

import (
	"slices"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/clock"
)

// Condition kinds as recorded in match results.
const (
	ConditionSeverity            = "severity"
	ConditionServiceType         = "service_type"
	ConditionComponent           = "component"
	ConditionDuration            = "duration"
	ConditionStatus              = "status"
	ConditionOutsideWorkingHours = "outside_working_hours"
	ConditionWorkDaysOnly        = "work_days_only"
)

// MatchedCondition records one satisfied condition and the value that
// satisfied it.
type MatchedCondition struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// MatchResult is the outcome of evaluating one rule against one alert.
type MatchResult struct {
	Matches           bool               `json:"matches"`
	MatchedConditions []MatchedCondition `json:"matched_conditions"`
}

// Matcher evaluates rule conditions against alerts. Matching is conjunctive:
// every condition the rule declares must hold, with no partial credit.
type Matcher struct {
	clock    clock.Clock
	schedule *Schedule
}

// NewMatcher creates a matcher using the given clock for age and
// working-hours evaluation.
func NewMatcher(c clock.Clock) *Matcher {
	return &Matcher{clock: c, schedule: NewSchedule(c)}
}

// Match evaluates the rule's conditions against the alert.
func (m *Matcher) Match(rule domain.Rule, alert domain.Alert) MatchResult {
	cond := rule.Conditions

	declared := 0
	var matched []MatchedCondition

	if len(cond.Severities) > 0 {
		declared++
		if slices.Contains(cond.Severities, alert.Severity) {
			matched = append(matched, MatchedCondition{Type: ConditionSeverity, Value: alert.Severity})
		}
	}

	if len(cond.ServiceTypes) > 0 {
		declared++
		if slices.Contains(cond.ServiceTypes, alert.ServiceType) {
			matched = append(matched, MatchedCondition{Type: ConditionServiceType, Value: alert.ServiceType})
		}
	}

	if cond.Component != "" {
		declared++
		if alert.Component == cond.Component {
			matched = append(matched, MatchedCondition{Type: ConditionComponent, Value: alert.Component})
		}
	}

	if cond.DurationMinutes != nil {
		declared++
		if age := alert.AgeMinutes(m.clock.Now()); age >= *cond.DurationMinutes {
			matched = append(matched, MatchedCondition{Type: ConditionDuration, Value: age})
		}
	}

	if len(cond.Statuses) > 0 {
		declared++
		if slices.Contains(cond.Statuses, alert.Status) {
			matched = append(matched, MatchedCondition{Type: ConditionStatus, Value: alert.Status})
		}
	}

	if cond.OutsideWorkingHours != nil {
		declared++
		if outside := m.schedule.IsOutsideWorkingHours(rule.WorkingHours); outside == *cond.OutsideWorkingHours {
			matched = append(matched, MatchedCondition{Type: ConditionOutsideWorkingHours, Value: outside})
		}
	}

	if cond.WorkDaysOnly != nil {
		declared++
		if workday := m.schedule.IsWorkDay(rule.WorkingHours); workday == *cond.WorkDaysOnly {
			matched = append(matched, MatchedCondition{Type: ConditionWorkDaysOnly, Value: workday})
		}
	}

	return MatchResult{
		Matches:           len(matched) == declared,
		MatchedConditions: matched,
	}
}

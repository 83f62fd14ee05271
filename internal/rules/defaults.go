package rules

import (
	"context"
	"fmt"

	"github.com/bissquit/escalation-garden/internal/domain"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// DefaultRules returns the built-in escalation policies. They apply when no
// externally authored rule set overrides them.
func DefaultRules() []domain.Rule {
	return []domain.Rule{
		{
			ID:          "critical-sustained",
			Name:        "Critical alert escalation",
			Description: "Escalates critical alerts that stay open for more than five minutes.",
			Enabled:     true,
			Priority:    1,
			Conditions: domain.Conditions{
				Severities:      []domain.Severity{domain.SeverityCritical},
				Statuses:        []string{"open", "firing"},
				DurationMinutes: intPtr(5),
			},
			Actions: []domain.Action{
				{
					DelayMinutes:    5,
					Channels:        []string{"email", "slack"},
					EscalationLevel: 1,
					NotifyOncall:    true,
				},
				{
					DelayMinutes:    10,
					Channels:        []string{"email", "slack", "sms"},
					EscalationLevel: 2,
					NotifyManagers:  true,
					CreateIncident:  true,
				},
				{
					DelayMinutes:        20,
					Channels:            []string{"email", "slack", "sms", "pagerduty"},
					EscalationLevel:     3,
					NotifyExecutives:    true,
					CreateMajorIncident: true,
				},
			},
			TerminationConditions: []domain.TerminationCondition{
				{Field: "status", Value: "resolved"},
				{Field: "status", Value: "closed"},
			},
		},
		{
			ID:          "warning-sustained",
			Name:        "Warning alert escalation",
			Description: "Escalates warning alerts that stay open for more than thirty minutes.",
			Enabled:     true,
			Priority:    2,
			Conditions: domain.Conditions{
				Severities:      []domain.Severity{domain.SeverityWarning},
				Statuses:        []string{"open", "firing"},
				DurationMinutes: intPtr(30),
			},
			Actions: []domain.Action{
				{
					DelayMinutes:    30,
					Channels:        []string{"email"},
					EscalationLevel: 1,
				},
				{
					DelayMinutes:    60,
					Channels:        []string{"email", "slack"},
					EscalationLevel: 2,
					NotifyManagers:  true,
				},
			},
			TerminationConditions: []domain.TerminationCondition{
				{Field: "status", Value: "resolved"},
			},
			MaxEscalations: intPtr(2),
		},
		{
			ID:          "after-hours-critical",
			Name:        "After-hours critical escalation",
			Description: "Pages the on-call engineer immediately for critical alerts raised outside working hours.",
			Enabled:     true,
			Priority:    1,
			Conditions: domain.Conditions{
				Severities:          []domain.Severity{domain.SeverityCritical},
				OutsideWorkingHours: boolPtr(true),
			},
			WorkingHours: &domain.WorkingHours{
				Enabled:  true,
				Hours:    domain.HourRange{Start: 9, End: 17},
				Timezone: "UTC",
				WorkDays: []int{1, 2, 3, 4, 5},
			},
			Actions: []domain.Action{
				{
					DelayMinutes:    1,
					Channels:        []string{"pagerduty", "sms"},
					EscalationLevel: 1,
					NotifyOncall:    true,
				},
				{
					DelayMinutes:    15,
					Channels:        []string{"pagerduty", "sms", "email"},
					EscalationLevel: 2,
					NotifyManagers:  true,
				},
			},
			TerminationConditions: []domain.TerminationCondition{
				{Field: "status", Value: "resolved"},
				{Field: "status", Value: "acknowledged"},
			},
		},
	}
}

// LoadDefaults adds the built-in rules to the catalog.
func LoadDefaults(ctx context.Context, catalog *Catalog) error {
	for _, rule := range DefaultRules() {
		if _, err := catalog.Upsert(ctx, rule); err != nil {
			return fmt.Errorf("load default rule %s: %w", rule.ID, err)
		}
	}
	return nil
}

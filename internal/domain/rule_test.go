package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerminationCondition(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TerminationCondition
		wantErr bool
	}{
		{"simple", "status:resolved", TerminationCondition{Field: "status", Value: "resolved"}, false},
		{"value with colon", "component:db:primary", TerminationCondition{Field: "component", Value: "db:primary"}, false},
		{"empty value", "status:", TerminationCondition{Field: "status", Value: ""}, false},
		{"no separator", "resolved", TerminationCondition{}, true},
		{"empty field", ":resolved", TerminationCondition{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTerminationCondition(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminationCondition_Matches(t *testing.T) {
	alert := Alert{
		ID:          "a1",
		Severity:    SeverityWarning,
		Status:      "resolved",
		ServiceType: "database",
		Component:   "primary",
	}

	assert.True(t, TerminationCondition{Field: "status", Value: "resolved"}.Matches(alert))
	assert.True(t, TerminationCondition{Field: "severity", Value: "warning"}.Matches(alert))
	assert.False(t, TerminationCondition{Field: "status", Value: "open"}.Matches(alert))
	assert.False(t, TerminationCondition{Field: "unknown_field", Value: "x"}.Matches(alert))
}

func TestAlert_AgeMinutes(t *testing.T) {
	created := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	alert := Alert{CreatedAt: created}

	assert.Equal(t, 0, alert.AgeMinutes(created))
	assert.Equal(t, 0, alert.AgeMinutes(created.Add(59*time.Second)))
	assert.Equal(t, 1, alert.AgeMinutes(created.Add(time.Minute)))
	assert.Equal(t, 90, alert.AgeMinutes(created.Add(90*time.Minute)))
}

func TestRule_Clone_IsDeep(t *testing.T) {
	duration := 5
	maxEsc := 2
	outside := true

	original := Rule{
		ID:       "r1",
		Priority: 1,
		Conditions: Conditions{
			Severities:          []Severity{SeverityCritical},
			ServiceTypes:        []string{"database"},
			DurationMinutes:     &duration,
			OutsideWorkingHours: &outside,
		},
		Actions: []Action{
			{DelayMinutes: 5, Channels: []string{"slack"}},
		},
		WorkingHours: &WorkingHours{
			Enabled:  true,
			Hours:    HourRange{Start: 9, End: 17},
			WorkDays: []int{1, 2, 3},
		},
		TerminationConditions: []TerminationCondition{{Field: "status", Value: "resolved"}},
		MaxEscalations:        &maxEsc,
	}

	clone := original.Clone()

	clone.Conditions.Severities[0] = SeverityInfo
	*clone.Conditions.DurationMinutes = 99
	clone.Actions[0].Channels[0] = "email"
	clone.WorkingHours.WorkDays[0] = 0
	*clone.MaxEscalations = 99
	clone.TerminationConditions[0].Value = "closed"

	assert.Equal(t, SeverityCritical, original.Conditions.Severities[0])
	assert.Equal(t, 5, *original.Conditions.DurationMinutes)
	assert.Equal(t, "slack", original.Actions[0].Channels[0])
	assert.Equal(t, 1, original.WorkingHours.WorkDays[0])
	assert.Equal(t, 2, *original.MaxEscalations)
	assert.Equal(t, "resolved", original.TerminationConditions[0].Value)
}

func TestEscalation_PendingActions(t *testing.T) {
	esc := Escalation{
		ScheduledActions: []ScheduledAction{
			{Executed: true},
			{Executed: false, Error: "send failed"},
			{Executed: false},
			{Executed: false},
		},
	}
	assert.Equal(t, 2, esc.PendingActions())
}

func TestEscalationStatus_IsTerminal(t *testing.T) {
	assert.False(t, EscalationStatusActive.IsTerminal())
	assert.True(t, EscalationStatusCompleted.IsTerminal())
	assert.True(t, EscalationStatusTerminated.IsTerminal())
	assert.True(t, EscalationStatusMaxLevelReached.IsTerminal())
	assert.True(t, EscalationStatusStopped.IsTerminal())
}

func TestConditions_IsEmpty(t *testing.T) {
	assert.True(t, Conditions{}.IsEmpty())
	assert.False(t, Conditions{Component: "db"}.IsEmpty())

	off := false
	assert.False(t, Conditions{WorkDaysOnly: &off}.IsEmpty())
}

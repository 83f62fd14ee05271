package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/clock"
)

func testAlert(created time.Time) domain.Alert {
	return domain.Alert{
		ID:          "alert-1",
		Severity:    domain.SeverityCritical,
		Status:      "open",
		ServiceType: "database",
		Component:   "primary",
		CreatedAt:   created,
	}
}

func TestMatcher_Match_Conjunctive(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	matcher := NewMatcher(clock.NewFake(now))
	alert := testAlert(now.Add(-10 * time.Minute))

	tests := []struct {
		name        string
		conditions  domain.Conditions
		wantMatch   bool
		wantMatched int
	}{
		{
			name: "all conditions hold",
			conditions: domain.Conditions{
				Severities:      []domain.Severity{domain.SeverityCritical},
				ServiceTypes:    []string{"database"},
				DurationMinutes: intPtr(5),
			},
			wantMatch:   true,
			wantMatched: 3,
		},
		{
			name: "one condition fails",
			conditions: domain.Conditions{
				Severities:   []domain.Severity{domain.SeverityCritical},
				ServiceTypes: []string{"payment"},
			},
			wantMatch:   false,
			wantMatched: 1,
		},
		{
			name: "severity list membership",
			conditions: domain.Conditions{
				Severities: []domain.Severity{domain.SeverityWarning, domain.SeverityCritical},
			},
			wantMatch:   true,
			wantMatched: 1,
		},
		{
			name:        "component exact match",
			conditions:  domain.Conditions{Component: "primary"},
			wantMatch:   true,
			wantMatched: 1,
		},
		{
			name:        "component mismatch",
			conditions:  domain.Conditions{Component: "replica"},
			wantMatch:   false,
			wantMatched: 0,
		},
		{
			name:        "status membership",
			conditions:  domain.Conditions{Statuses: []string{"open", "firing"}},
			wantMatch:   true,
			wantMatched: 1,
		},
		{
			name:        "no conditions declared matches vacuously",
			conditions:  domain.Conditions{},
			wantMatch:   true,
			wantMatched: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := matcher.Match(domain.Rule{Conditions: tt.conditions}, alert)
			assert.Equal(t, tt.wantMatch, result.Matches)
			assert.Len(t, result.MatchedConditions, tt.wantMatched)
		})
	}
}

func TestMatcher_Match_DurationThreshold(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	matcher := NewMatcher(clock.NewFake(now))

	rule := domain.Rule{Conditions: domain.Conditions{DurationMinutes: intPtr(5)}}

	tests := []struct {
		name  string
		age   time.Duration
		match bool
	}{
		{"younger than threshold", 4 * time.Minute, false},
		{"exactly at threshold", 5 * time.Minute, true},
		{"older than threshold", 30 * time.Minute, true},
		{"just under threshold by seconds", 4*time.Minute + 59*time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := testAlert(now.Add(-tt.age))
			result := matcher.Match(rule, alert)
			assert.Equal(t, tt.match, result.Matches)
		})
	}
}

func TestMatcher_Match_WorkingHoursConditions(t *testing.T) {
	// Monday 03:00 UTC, well outside a 9-17 window
	night := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	matcher := NewMatcher(clock.NewFake(night))
	alert := testAlert(night.Add(-time.Minute))

	wh := &domain.WorkingHours{
		Enabled:  true,
		Hours:    domain.HourRange{Start: 9, End: 17},
		WorkDays: []int{1, 2, 3, 4, 5},
	}

	rule := domain.Rule{
		Conditions:   domain.Conditions{OutsideWorkingHours: boolPtr(true)},
		WorkingHours: wh,
	}
	result := matcher.Match(rule, alert)
	require.True(t, result.Matches)
	require.Len(t, result.MatchedConditions, 1)
	assert.Equal(t, ConditionOutsideWorkingHours, result.MatchedConditions[0].Type)

	// The same instant does not match a rule wanting inside-hours alerts
	rule.Conditions.OutsideWorkingHours = boolPtr(false)
	assert.False(t, matcher.Match(rule, alert).Matches)

	// Monday is a workday
	rule = domain.Rule{
		Conditions:   domain.Conditions{WorkDaysOnly: boolPtr(true)},
		WorkingHours: wh,
	}
	assert.True(t, matcher.Match(rule, alert).Matches)
}

func TestMatcher_Match_RecordsMatchedValues(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	matcher := NewMatcher(clock.NewFake(now))
	alert := testAlert(now.Add(-12 * time.Minute))

	rule := domain.Rule{Conditions: domain.Conditions{
		Severities:      []domain.Severity{domain.SeverityCritical},
		DurationMinutes: intPtr(10),
	}}

	result := matcher.Match(rule, alert)
	require.True(t, result.Matches)
	require.Len(t, result.MatchedConditions, 2)
	assert.Equal(t, ConditionSeverity, result.MatchedConditions[0].Type)
	assert.Equal(t, domain.SeverityCritical, result.MatchedConditions[0].Value)
	assert.Equal(t, ConditionDuration, result.MatchedConditions[1].Type)
	assert.Equal(t, 12, result.MatchedConditions[1].Value)
}

package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/clock"
)

// mockStore records store calls for write-through assertions.
type mockStore struct {
	saved   []domain.Rule
	deleted []string
	loadSet []domain.Rule
	saveErr error
}

func (m *mockStore) SaveRule(_ context.Context, rule domain.Rule) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rule)
	return nil
}

func (m *mockStore) DeleteRule(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStore) LoadRules(_ context.Context) ([]domain.Rule, error) {
	return m.loadSet, nil
}

func validRule(id string) domain.Rule {
	return domain.Rule{
		ID:       id,
		Name:     "Rule " + id,
		Enabled:  true,
		Priority: 2,
		Conditions: domain.Conditions{
			Severities: []domain.Severity{domain.SeverityCritical},
		},
		Actions: []domain.Action{
			{DelayMinutes: 5, Channels: []string{"slack"}, EscalationLevel: 1},
		},
	}
}

func newTestCatalog(t *testing.T) (*Catalog, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	return NewCatalog(fake, nil), fake
}

func TestCatalog_Add(t *testing.T) {
	catalog, fake := newTestCatalog(t)
	ctx := context.Background()

	added, err := catalog.Add(ctx, validRule("r1"))
	require.NoError(t, err)
	assert.Equal(t, fake.Now(), added.CreatedAt)
	assert.Equal(t, fake.Now(), added.UpdatedAt)

	_, err = catalog.Add(ctx, validRule("r1"))
	assert.ErrorIs(t, err, ErrRuleExists)
}

func TestCatalog_Add_DefaultsPriority(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	rule := validRule("r1")
	rule.Priority = 0

	added, err := catalog.Add(context.Background(), rule)
	require.NoError(t, err)
	assert.Equal(t, 3, added.Priority)
}

func TestCatalog_Add_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Rule)
		field  string
	}{
		{"missing id", func(r *domain.Rule) { r.ID = "" }, "id"},
		{"missing name", func(r *domain.Rule) { r.Name = "" }, "name"},
		{"no conditions", func(r *domain.Rule) { r.Conditions = domain.Conditions{} }, "conditions"},
		{"unknown severity", func(r *domain.Rule) {
			r.Conditions.Severities = []domain.Severity{"fatal"}
		}, "conditions.severity"},
		{"no actions", func(r *domain.Rule) { r.Actions = nil }, "actions"},
		{"zero delay", func(r *domain.Rule) { r.Actions[0].DelayMinutes = 0 }, "actions[0].delay_minutes"},
		{"no channels", func(r *domain.Rule) { r.Actions[0].Channels = nil }, "actions[0].channels"},
		{"bad working hours", func(r *domain.Rule) {
			r.WorkingHours = &domain.WorkingHours{Enabled: true, Hours: domain.HourRange{Start: 18, End: 9}}
		}, "working_hours.hours"},
		{"bad work day", func(r *domain.Rule) {
			r.WorkingHours = &domain.WorkingHours{Enabled: true, Hours: domain.HourRange{Start: 9, End: 17}, WorkDays: []int{8}}
		}, "working_hours.work_days"},
		{"unknown termination field", func(r *domain.Rule) {
			r.TerminationConditions = []domain.TerminationCondition{{Field: "owner", Value: "x"}}
		}, "termination_conditions[0].field"},
		{"zero max escalations", func(r *domain.Rule) { r.MaxEscalations = intPtr(0) }, "max_escalations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, _ := newTestCatalog(t)
			rule := validRule("r1")
			tt.mutate(&rule)

			_, err := catalog.Add(context.Background(), rule)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCatalog_Update(t *testing.T) {
	catalog, fake := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.Add(ctx, validRule("r1"))
	require.NoError(t, err)

	fake.Advance(time.Hour)

	name := "Renamed"
	updated, err := catalog.Update(ctx, "r1", RuleUpdate{Name: &name, Priority: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 1, updated.Priority)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	// Untouched fields survive the merge
	assert.Len(t, updated.Actions, 1)
}

func TestCatalog_Update_RejectsInvalidMerge(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.Add(ctx, validRule("r1"))
	require.NoError(t, err)

	_, err = catalog.Update(ctx, "r1", RuleUpdate{Actions: []domain.Action{{DelayMinutes: 0}}})
	assert.True(t, IsValidationError(err))

	// The stored rule is unchanged
	rule, err := catalog.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 5, rule.Actions[0].DelayMinutes)
}

func TestCatalog_Update_NotFound(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	_, err := catalog.Update(context.Background(), "missing", RuleUpdate{})
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestCatalog_Delete(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.Add(ctx, validRule("r1"))
	require.NoError(t, err)

	deleted, err := catalog.Delete(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = catalog.Delete(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = catalog.Get("r1")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestCatalog_WriteThroughStore(t *testing.T) {
	store := &mockStore{}
	fake := clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	catalog := NewCatalog(fake, store)
	ctx := context.Background()

	_, err := catalog.Add(ctx, validRule("r1"))
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "r1", store.saved[0].ID)

	_, err = catalog.Update(ctx, "r1", RuleUpdate{Priority: intPtr(1)})
	require.NoError(t, err)
	assert.Len(t, store.saved, 2)

	_, err = catalog.Delete(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, store.deleted)
}

func TestCatalog_StoreFailureRejectsMutation(t *testing.T) {
	store := &mockStore{saveErr: errors.New("connection refused")}
	fake := clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	catalog := NewCatalog(fake, store)

	_, err := catalog.Add(context.Background(), validRule("r1"))
	require.Error(t, err)

	// The in-memory view stays consistent with the store
	_, err = catalog.Get("r1")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestCatalog_Load(t *testing.T) {
	store := &mockStore{loadSet: []domain.Rule{validRule("stored-1"), validRule("stored-2")}}
	fake := clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	catalog := NewCatalog(fake, store)

	require.NoError(t, catalog.Load(context.Background()))
	assert.Len(t, catalog.List(), 2)
}

func TestCatalog_Evaluate(t *testing.T) {
	catalog, fake := newTestCatalog(t)
	ctx := context.Background()

	critical := validRule("critical")
	critical.Priority = 1

	warning := validRule("warning")
	warning.Priority = 2
	warning.Conditions = domain.Conditions{Severities: []domain.Severity{domain.SeverityWarning}}

	disabled := validRule("disabled")
	disabled.Enabled = false

	for _, r := range []domain.Rule{critical, warning, disabled} {
		_, err := catalog.Add(ctx, r)
		require.NoError(t, err)
	}

	alert := domain.Alert{
		ID:        "a1",
		Severity:  domain.SeverityCritical,
		Status:    "open",
		CreatedAt: fake.Now().Add(-time.Minute),
	}

	matches := catalog.Evaluate(alert)
	require.Len(t, matches, 1)
	assert.Equal(t, "critical", matches[0].Rule.ID)
	assert.Equal(t, 55, matches[0].Score)
}

func TestCatalog_Evaluate_RankedOrder(t *testing.T) {
	catalog, fake := newTestCatalog(t)
	ctx := context.Background()

	low := validRule("low")
	low.Priority = 3

	high := validRule("high")
	high.Priority = 1

	_, err := catalog.Add(ctx, low)
	require.NoError(t, err)
	_, err = catalog.Add(ctx, high)
	require.NoError(t, err)

	alert := domain.Alert{
		ID:        "a1",
		Severity:  domain.SeverityCritical,
		CreatedAt: fake.Now(),
	}

	matches := catalog.Evaluate(alert)
	require.Len(t, matches, 2)
	assert.Equal(t, "high", matches[0].Rule.ID)
	assert.Equal(t, "low", matches[1].Rule.ID)
}

func TestCatalog_RecordExecution(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.Add(ctx, validRule("r1"))
	require.NoError(t, err)

	catalog.RecordExecution(ctx, "r1")
	catalog.RecordExecution(ctx, "r1")
	catalog.RecordExecution(ctx, "missing") // ignored

	counts := catalog.ExecutionCounts()
	assert.Equal(t, 2, counts["r1"])
}

func TestLoadDefaults(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	require.NoError(t, LoadDefaults(context.Background(), catalog))
	assert.NotEmpty(t, catalog.List())

	// Loading twice upserts rather than failing
	require.NoError(t, LoadDefaults(context.Background(), catalog))
}

// Package escalation provides the escalation lifecycle: schedule building,
// the tick-driven runner state machine, the active-escalation registry and
// the history log.
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/clock"
	"github.com/bissquit/escalation-garden/internal/rules"
)

// ChannelDispatcher delivers one escalation notification over one channel.
// Failures must not be fatal to the caller.
type ChannelDispatcher interface {
	Send(ctx context.Context, channel string, alert domain.Alert, level int) error
}

// IncidentSystem creates incidents in an external incident-management tool.
type IncidentSystem interface {
	CreateIncident(ctx context.Context, alert domain.Alert, action domain.Action) error
	CreateMajorIncident(ctx context.Context, alert domain.Alert, action domain.Action) error
}

// ManagerNotifier escalates to engineering managers.
type ManagerNotifier interface {
	NotifyManagers(ctx context.Context, alert domain.Alert, action domain.Action) error
}

// ExecutiveNotifier escalates to executives.
type ExecutiveNotifier interface {
	NotifyExecutives(ctx context.Context, alert domain.Alert, action domain.Action) error
}

// OncallNotifier pages the on-call engineer.
type OncallNotifier interface {
	NotifyOncall(ctx context.Context, alert domain.Alert, action domain.Action) error
}

// Collaborators bundles the optional external collaborator calls an action
// can trigger. Nil fields are skipped.
type Collaborators struct {
	Incidents  IncidentSystem
	Managers   ManagerNotifier
	Executives ExecutiveNotifier
	Oncall     OncallNotifier
}

// RuleExecutions tracks per-rule execution counters in the rule catalog.
type RuleExecutions interface {
	RecordExecution(ctx context.Context, ruleID string)
	ExecutionCounts() map[string]int
}

// Config holds engine configuration.
type Config struct {
	// Enabled is the global escalation switch. When off, Start refuses to
	// create escalations.
	Enabled bool
	// MaxLevel caps escalation depth unless a rule overrides it higher.
	MaxLevel int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{Enabled: true, MaxLevel: 3}
}

// entry pairs an escalation with its own lock. Ticks against the same
// escalation are serialized; ticks against different escalations run in
// parallel.
type entry struct {
	mu  sync.Mutex
	esc *domain.Escalation
}

func (e *entry) lock()   { e.mu.Lock() }
func (e *entry) unlock() { e.mu.Unlock() }

// Engine owns the escalation registry and drives the escalation state
// machine. It is constructed once per process with explicit collaborators;
// there is no ambient global state.
type Engine struct {
	config     Config
	clock      clock.Clock
	dispatcher ChannelDispatcher
	collab     Collaborators
	history    HistoryLog
	executions RuleExecutions
	registry   *registry
}

// NewEngine creates an escalation engine.
func NewEngine(cfg Config, c clock.Clock, dispatcher ChannelDispatcher, collab Collaborators, history HistoryLog, executions RuleExecutions) *Engine {
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = DefaultConfig().MaxLevel
	}
	if history == nil {
		history = NewMemoryHistory()
	}
	return &Engine{
		config:     cfg,
		clock:      c,
		dispatcher: dispatcher,
		collab:     collab,
		history:    history,
		executions: executions,
		registry:   newRegistry(),
	}
}

// History exposes the engine's history log for queries.
func (e *Engine) History() HistoryLog {
	return e.history
}

// Start builds and registers a new escalation for the alert from its ranked
// rule matches. Matched rules are snapshotted so later catalog edits do not
// affect the escalation in flight. The combined action list of all matched
// rules is sorted ascending by trigger time, interleaving actions from
// different rules.
func (e *Engine) Start(ctx context.Context, alert domain.Alert, matches []rules.Match) (*domain.Escalation, error) {
	if !e.config.Enabled {
		return nil, ErrEscalationDisabled
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingRules, alert.ID)
	}

	now := e.clock.Now()
	esc := &domain.Escalation{
		ID:               fmt.Sprintf("%s-%s", alert.ID, uuid.NewString()),
		AlertID:          alert.ID,
		Alert:            alert,
		Status:           domain.EscalationStatusActive,
		StartedAt:        now,
		LastEscalationAt: now,
	}

	for _, m := range matches {
		rule := m.Rule.Clone()
		esc.Rules = append(esc.Rules, rule)

		for i, action := range rule.Actions {
			esc.ScheduledActions = append(esc.ScheduledActions, domain.ScheduledAction{
				ID:              uuid.NewString(),
				RuleID:          rule.ID,
				ActionIndex:     i,
				ScheduledTime:   now.Add(time.Duration(action.DelayMinutes) * time.Minute),
				Channels:        append([]string(nil), action.Channels...),
				EscalationLevel: action.EscalationLevel,
			})
		}
	}

	// Actions from different rules interleave by wall-clock trigger time,
	// not per-rule grouping. Stable sort keeps append order on ties.
	sort.SliceStable(esc.ScheduledActions, func(i, j int) bool {
		return esc.ScheduledActions[i].ScheduledTime.Before(esc.ScheduledActions[j].ScheduledTime)
	})

	e.registry.add(esc)
	recordEscalationStarted()

	if err := e.history.Record(ctx, domain.HistoryEntry{
		EscalationID: esc.ID,
		AlertID:      alert.ID,
		Action:       domain.HistoryActionStarted,
		Timestamp:    now,
		RuleCount:    len(esc.Rules),
	}); err != nil {
		slog.Error("failed to record escalation start", "escalation_id", esc.ID, "error", err)
	}

	slog.Info("escalation started",
		"escalation_id", esc.ID,
		"alert_id", alert.ID,
		"rules", len(esc.Rules),
		"scheduled_actions", len(esc.ScheduledActions),
	)

	return esc.Clone(), nil
}

// SetAlert refreshes the escalation's view of the alert. Alert state is
// mutated upstream; termination predicates evaluate against the most
// recently supplied snapshot.
func (e *Engine) SetAlert(escalationID string, alert domain.Alert) error {
	ent, ok := e.registry.get(escalationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEscalationNotFound, escalationID)
	}
	ent.lock()
	defer ent.unlock()
	ent.esc.Alert = alert
	return nil
}

// Get returns a copy of the escalation with the given id.
func (e *Engine) Get(escalationID string) (*domain.Escalation, error) {
	ent, ok := e.registry.get(escalationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEscalationNotFound, escalationID)
	}
	ent.lock()
	defer ent.unlock()
	return ent.esc.Clone(), nil
}

// List returns copies of all known escalations, newest first.
func (e *Engine) List() []*domain.Escalation {
	entries := e.registry.all()
	out := make([]*domain.Escalation, 0, len(entries))
	for _, ent := range entries {
		ent.lock()
		out = append(out, ent.esc.Clone())
		ent.unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// ActiveIDs returns the ids of all escalations still in the active state.
func (e *Engine) ActiveIDs() []string {
	return e.registry.activeIDs()
}

// Stop forces the escalation into the stopped state regardless of progress
// and records the reason. It reports false for unknown ids and for
// escalations already in a terminal state.
func (e *Engine) Stop(ctx context.Context, escalationID, reason string) bool {
	ent, ok := e.registry.get(escalationID)
	if !ok {
		return false
	}
	ent.lock()
	defer ent.unlock()

	if ent.esc.Status.IsTerminal() {
		return false
	}

	now := e.clock.Now()
	ent.esc.Status = domain.EscalationStatusStopped
	ent.esc.StoppedAt = &now
	ent.esc.StopReason = reason

	e.recordTransition(ctx, ent.esc, domain.HistoryActionStopped, reason)
	recordEscalationFinished(string(domain.EscalationStatusStopped))

	slog.Info("escalation stopped", "escalation_id", escalationID, "reason", reason)
	return true
}

func (e *Engine) recordTransition(ctx context.Context, esc *domain.Escalation, action domain.HistoryAction, reason string) {
	if err := e.history.Record(ctx, domain.HistoryEntry{
		EscalationID: esc.ID,
		AlertID:      esc.AlertID,
		Action:       action,
		Timestamp:    e.clock.Now(),
		Reason:       reason,
	}); err != nil {
		slog.Error("failed to record history entry",
			"escalation_id", esc.ID,
			"action", action,
			"error", err,
		)
	}
}

// Stats summarizes engine state.
type Stats struct {
	Total           int            `json:"total"`
	Active          int            `json:"active"`
	Completed       int            `json:"completed"`
	Terminated      int            `json:"terminated"`
	MaxLevelReached int            `json:"max_level_reached"`
	Stopped         int            `json:"stopped"`
	RuleExecutions  map[string]int `json:"rule_executions"`
}

// Stats returns escalation counts by status plus per-rule execution counts.
func (e *Engine) Stats() Stats {
	stats := Stats{RuleExecutions: map[string]int{}}
	for _, ent := range e.registry.all() {
		ent.lock()
		status := ent.esc.Status
		ent.unlock()

		stats.Total++
		switch status {
		case domain.EscalationStatusActive:
			stats.Active++
		case domain.EscalationStatusCompleted:
			stats.Completed++
		case domain.EscalationStatusTerminated:
			stats.Terminated++
		case domain.EscalationStatusMaxLevelReached:
			stats.MaxLevelReached++
		case domain.EscalationStatusStopped:
			stats.Stopped++
		}
	}
	if e.executions != nil {
		stats.RuleExecutions = e.executions.ExecutionCounts()
	}
	return stats
}

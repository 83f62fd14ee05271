package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// Advance runs one tick of the escalation state machine: it executes every
// scheduled action that has come due, applying termination and max-depth
// checks before each one. Due-action detection is polling-based, so an
// action fires at or after its scheduled time, never exactly at it.
// Ticks against the same escalation are serialized; a tick with no due
// actions is a no-op.
func (e *Engine) Advance(ctx context.Context, escalationID string) error {
	ent, ok := e.registry.get(escalationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEscalationNotFound, escalationID)
	}

	ent.lock()
	defer ent.unlock()

	esc := ent.esc
	if esc.Status.IsTerminal() {
		return nil
	}

	start := time.Now()
	defer func() { recordTickDuration(time.Since(start)) }()

	now := e.clock.Now()
	for i := range esc.ScheduledActions {
		action := &esc.ScheduledActions[i]
		if action.Executed || action.Error != "" || action.ScheduledTime.After(now) {
			continue
		}

		// Termination wins over everything else: stop processing the
		// remaining due actions for this tick.
		if reason, terminated := e.checkTermination(esc); terminated {
			esc.Status = domain.EscalationStatusTerminated
			stoppedAt := now
			esc.StoppedAt = &stoppedAt
			esc.StopReason = reason

			e.recordTransition(ctx, esc, domain.HistoryActionStopped, reason)
			recordEscalationFinished(string(domain.EscalationStatusTerminated))

			slog.Info("escalation terminated",
				"escalation_id", esc.ID,
				"reason", reason,
			)
			return nil
		}

		if limit := e.effectiveMaxLevel(esc, action.RuleID); esc.CurrentLevel >= limit {
			esc.Status = domain.EscalationStatusMaxLevelReached
			stoppedAt := now
			esc.StoppedAt = &stoppedAt
			esc.StopReason = fmt.Sprintf("maximum escalation level %d reached", limit)

			e.recordTransition(ctx, esc, domain.HistoryActionStopped, esc.StopReason)
			recordEscalationFinished(string(domain.EscalationStatusMaxLevelReached))

			slog.Info("escalation reached maximum level",
				"escalation_id", esc.ID,
				"level", esc.CurrentLevel,
			)
			return nil
		}

		e.executeAction(ctx, esc, action, now)
	}

	if esc.PendingActions() == 0 {
		esc.Status = domain.EscalationStatusCompleted
		completedAt := now
		esc.CompletedAt = &completedAt

		e.recordTransition(ctx, esc, domain.HistoryActionCompleted, "")
		recordEscalationFinished(string(domain.EscalationStatusCompleted))

		slog.Info("escalation completed", "escalation_id", esc.ID)
	}

	return nil
}

// AdvanceAll ticks every active escalation. Errors are logged per
// escalation, never aggregated into a failure of the whole sweep.
func (e *Engine) AdvanceAll(ctx context.Context) {
	for _, id := range e.registry.activeIDs() {
		if err := e.Advance(ctx, id); err != nil {
			slog.Error("escalation tick failed", "escalation_id", id, "error", err)
		}
	}
}

// checkTermination evaluates every termination predicate of every
// snapshotted rule against the alert.
func (e *Engine) checkTermination(esc *domain.Escalation) (string, bool) {
	for _, rule := range esc.Rules {
		for _, tc := range rule.TerminationConditions {
			if tc.Matches(esc.Alert) {
				return fmt.Sprintf("termination condition met: %s=%s (rule %s)", tc.Field, tc.Value, rule.ID), true
			}
		}
	}
	return "", false
}

// effectiveMaxLevel is the global cap, raised by the owning rule's
// max_escalations override when that is higher.
func (e *Engine) effectiveMaxLevel(esc *domain.Escalation, ruleID string) int {
	limit := e.config.MaxLevel
	for _, rule := range esc.Rules {
		if rule.ID == ruleID && rule.MaxEscalations != nil && *rule.MaxEscalations > limit {
			limit = *rule.MaxEscalations
		}
	}
	return limit
}

// executeAction dispatches one due action: every channel is attempted, then
// every collaborator flag. A failure is recorded on the action and isolated
// there; it never aborts the tick.
func (e *Engine) executeAction(ctx context.Context, esc *domain.Escalation, action *domain.ScheduledAction, now time.Time) {
	spec, ok := e.actionSpec(esc, action)
	if !ok {
		action.Error = fmt.Sprintf("rule %s action %d missing from snapshot", action.RuleID, action.ActionIndex)
		recordActionExecuted("failed")
		return
	}

	var errs []error
	for _, channel := range action.Channels {
		if err := e.dispatcher.Send(ctx, channel, esc.Alert, action.EscalationLevel); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, e.runCollaborators(ctx, esc.Alert, spec)...)

	esc.CurrentLevel = action.EscalationLevel
	esc.LastEscalationAt = now

	if len(errs) > 0 {
		action.Error = errors.Join(errs...).Error()
		recordActionExecuted("failed")
		slog.Warn("escalation action failed",
			"escalation_id", esc.ID,
			"rule_id", action.RuleID,
			"level", action.EscalationLevel,
			"error", action.Error,
		)
		return
	}

	action.Executed = true
	recordActionExecuted("success")

	for i := range esc.Rules {
		if esc.Rules[i].ID == action.RuleID {
			esc.Rules[i].Executions++
		}
	}
	if e.executions != nil {
		e.executions.RecordExecution(ctx, action.RuleID)
	}

	if err := e.history.Record(ctx, domain.HistoryEntry{
		EscalationID:    esc.ID,
		AlertID:         esc.AlertID,
		Action:          domain.HistoryActionExecuted,
		Timestamp:       now,
		Channels:        action.Channels,
		EscalationLevel: action.EscalationLevel,
	}); err != nil {
		slog.Error("failed to record action execution", "escalation_id", esc.ID, "error", err)
	}

	slog.Info("escalation action executed",
		"escalation_id", esc.ID,
		"rule_id", action.RuleID,
		"level", action.EscalationLevel,
		"channels", action.Channels,
	)
}

// actionSpec resolves the original action definition from the rule snapshot.
func (e *Engine) actionSpec(esc *domain.Escalation, action *domain.ScheduledAction) (domain.Action, bool) {
	for _, rule := range esc.Rules {
		if rule.ID == action.RuleID && action.ActionIndex < len(rule.Actions) {
			return rule.Actions[action.ActionIndex], true
		}
	}
	return domain.Action{}, false
}

func (e *Engine) runCollaborators(ctx context.Context, alert domain.Alert, spec domain.Action) []error {
	var errs []error

	if spec.CreateIncident && e.collab.Incidents != nil {
		if err := e.collab.Incidents.CreateIncident(ctx, alert, spec); err != nil {
			errs = append(errs, fmt.Errorf("create incident: %w", err))
		}
	}
	if spec.CreateMajorIncident && e.collab.Incidents != nil {
		if err := e.collab.Incidents.CreateMajorIncident(ctx, alert, spec); err != nil {
			errs = append(errs, fmt.Errorf("create major incident: %w", err))
		}
	}
	if spec.NotifyManagers && e.collab.Managers != nil {
		if err := e.collab.Managers.NotifyManagers(ctx, alert, spec); err != nil {
			errs = append(errs, fmt.Errorf("notify managers: %w", err))
		}
	}
	if spec.NotifyExecutives && e.collab.Executives != nil {
		if err := e.collab.Executives.NotifyExecutives(ctx, alert, spec); err != nil {
			errs = append(errs, fmt.Errorf("notify executives: %w", err))
		}
	}
	if spec.NotifyOncall && e.collab.Oncall != nil {
		if err := e.collab.Oncall.NotifyOncall(ctx, alert, spec); err != nil {
			errs = append(errs, fmt.Errorf("notify on-call: %w", err))
		}
	}

	return errs
}

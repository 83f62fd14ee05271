// Package rules provides the escalation rule catalog, alert-to-rule
// matching, scoring and working-hours evaluation.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/clock"
)

// Known alert fields usable in termination conditions.
var terminationFields = map[string]bool{
	"id":           true,
	"severity":     true,
	"status":       true,
	"service_type": true,
	"component":    true,
}

// Store persists rules. The catalog itself is the source of truth for
// reads; the store is written through on every mutation.
type Store interface {
	SaveRule(ctx context.Context, rule domain.Rule) error
	DeleteRule(ctx context.Context, id string) error
	LoadRules(ctx context.Context) ([]domain.Rule, error)
}

// Catalog owns the set of escalation rules. It is safe for concurrent use:
// readers always see fully formed rules, and Evaluate works on per-call
// copies so a concurrent update never produces a partial-rule view.
type Catalog struct {
	mu      sync.RWMutex
	rules   map[string]domain.Rule
	store   Store
	matcher *Matcher
	clock   clock.Clock
}

// NewCatalog creates an empty catalog. store may be nil for a purely
// in-memory catalog.
func NewCatalog(c clock.Clock, store Store) *Catalog {
	return &Catalog{
		rules:   make(map[string]domain.Rule),
		store:   store,
		matcher: NewMatcher(c),
		clock:   c,
	}
}

// Load populates the catalog from the configured store.
func (c *Catalog) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	stored, err := c.store.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range stored {
		c.rules[r.ID] = r
	}

	slog.Info("rule catalog loaded", "rules", len(stored))
	return nil
}

// Add validates and stores a new rule, defaulting bookkeeping fields.
// Fails with ErrRuleExists if the id is already taken.
func (c *Catalog) Add(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rules[rule.ID]; ok {
		return domain.Rule{}, fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}
	return c.put(ctx, rule)
}

// Upsert adds a rule or replaces an existing one with the same id. Used to
// merge externally authored rule sets over the built-in defaults.
func (c *Catalog) Upsert(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(ctx, rule)
}

// put validates and stores under an already-held write lock.
func (c *Catalog) put(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	if rule.Priority == 0 {
		rule.Priority = 3
	}
	if err := validateRule(rule); err != nil {
		return domain.Rule{}, err
	}

	now := c.clock.Now()
	rule.Executions = 0
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if c.store != nil {
		if err := c.store.SaveRule(ctx, rule); err != nil {
			return domain.Rule{}, fmt.Errorf("save rule %s: %w", rule.ID, err)
		}
	}

	c.rules[rule.ID] = rule
	return rule.Clone(), nil
}

// RuleUpdate holds the fields of an update request. Nil fields leave the
// existing value untouched; set fields overwrite it wholesale.
type RuleUpdate struct {
	Name                  *string
	Description           *string
	Enabled               *bool
	Priority              *int
	Conditions            *domain.Conditions
	Actions               []domain.Action
	WorkingHours          *domain.WorkingHours
	TerminationConditions []domain.TerminationCondition
	MaxEscalations        *int
}

// Update merges the update onto the existing rule, re-validates the merged
// result and bumps its updated timestamp. Fails with ErrRuleNotFound if the
// id is absent.
func (c *Catalog) Update(ctx context.Context, id string, upd RuleUpdate) (domain.Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.rules[id]
	if !ok {
		return domain.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	merged := existing.Clone()
	if upd.Name != nil {
		merged.Name = *upd.Name
	}
	if upd.Description != nil {
		merged.Description = *upd.Description
	}
	if upd.Enabled != nil {
		merged.Enabled = *upd.Enabled
	}
	if upd.Priority != nil {
		merged.Priority = *upd.Priority
	}
	if upd.Conditions != nil {
		merged.Conditions = *upd.Conditions
	}
	if upd.Actions != nil {
		merged.Actions = upd.Actions
	}
	if upd.WorkingHours != nil {
		merged.WorkingHours = upd.WorkingHours
	}
	if upd.TerminationConditions != nil {
		merged.TerminationConditions = upd.TerminationConditions
	}
	if upd.MaxEscalations != nil {
		merged.MaxEscalations = upd.MaxEscalations
	}

	if err := validateRule(merged); err != nil {
		return domain.Rule{}, err
	}

	merged.UpdatedAt = c.clock.Now()

	if c.store != nil {
		if err := c.store.SaveRule(ctx, merged); err != nil {
			return domain.Rule{}, fmt.Errorf("save rule %s: %w", id, err)
		}
	}

	c.rules[id] = merged
	return merged.Clone(), nil
}

// Delete removes a rule by id and reports whether it was present.
func (c *Catalog) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rules[id]; !ok {
		return false, nil
	}
	if c.store != nil {
		if err := c.store.DeleteRule(ctx, id); err != nil {
			return false, fmt.Errorf("delete rule %s: %w", id, err)
		}
	}
	delete(c.rules, id)
	return true, nil
}

// Get returns a copy of the rule with the given id.
func (c *Catalog) Get(id string) (domain.Rule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rule, ok := c.rules[id]
	if !ok {
		return domain.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule.Clone(), nil
}

// List returns copies of all rules in arbitrary order. Callers needing
// priority order must sort explicitly.
func (c *Catalog) List() []domain.Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.Clone())
	}
	return out
}

// RecordExecution bumps the execution counter of a rule. Missing rules are
// ignored: the rule may have been deleted while an escalation holding its
// snapshot was still running.
func (c *Catalog) RecordExecution(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule, ok := c.rules[id]
	if !ok {
		return
	}
	rule.Executions++
	c.rules[id] = rule

	if c.store != nil {
		if err := c.store.SaveRule(ctx, rule); err != nil {
			slog.Error("failed to persist rule execution count", "rule_id", id, "error", err)
		}
	}
}

// ExecutionCounts returns the per-rule execution counters.
func (c *Catalog) ExecutionCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]int, len(c.rules))
	for id, r := range c.rules {
		out[id] = r.Executions
	}
	return out
}

// Evaluate matches the alert against every enabled rule and returns the
// ranked match list. A rule whose evaluation panics is excluded from the
// result without aborting evaluation of the remaining rules.
func (c *Catalog) Evaluate(alert domain.Alert) []Match {
	c.mu.RLock()
	candidates := make([]domain.Rule, 0, len(c.rules))
	for _, r := range c.rules {
		if r.Enabled {
			candidates = append(candidates, r.Clone())
		}
	}
	c.mu.RUnlock()

	matches := make([]Match, 0, len(candidates))
	for _, rule := range candidates {
		result, ok := c.evaluateRule(rule, alert)
		if !ok || !result.Matches {
			continue
		}
		matches = append(matches, Match{
			Rule:              rule,
			MatchedConditions: result.MatchedConditions,
			Score:             Score(rule, result.MatchedConditions),
		})
	}

	Rank(matches)
	return matches
}

// evaluateRule shields Evaluate from a panicking rule evaluation.
func (c *Catalog) evaluateRule(rule domain.Rule, alert domain.Alert) (result MatchResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rule evaluation failed, excluding rule",
				"rule_id", rule.ID,
				"alert_id", alert.ID,
				"panic", r,
			)
			ok = false
		}
	}()
	return c.matcher.Match(rule, alert), true
}

// validateRule checks the structural invariants of a rule.
func validateRule(rule domain.Rule) error {
	if rule.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if rule.Name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if rule.Priority < 1 {
		return &ValidationError{Field: "priority", Reason: "must be >= 1"}
	}
	if rule.Conditions.IsEmpty() {
		return &ValidationError{Field: "conditions", Reason: "at least one condition required"}
	}
	for _, sev := range rule.Conditions.Severities {
		if !sev.IsValid() {
			return &ValidationError{Field: "conditions.severity", Reason: fmt.Sprintf("unknown severity %q", sev)}
		}
	}
	if rule.Conditions.DurationMinutes != nil && *rule.Conditions.DurationMinutes < 0 {
		return &ValidationError{Field: "conditions.duration_minutes", Reason: "must be >= 0"}
	}

	if len(rule.Actions) == 0 {
		return &ValidationError{Field: "actions", Reason: "at least one action required"}
	}
	for i, a := range rule.Actions {
		if a.DelayMinutes < 1 {
			return &ValidationError{Field: fmt.Sprintf("actions[%d].delay_minutes", i), Reason: "must be >= 1"}
		}
		if len(a.Channels) == 0 {
			return &ValidationError{Field: fmt.Sprintf("actions[%d].channels", i), Reason: "must not be empty"}
		}
	}

	if wh := rule.WorkingHours; wh != nil && wh.Enabled {
		if wh.Hours.Start < 0 || wh.Hours.Start > 23 {
			return &ValidationError{Field: "working_hours.hours.start", Reason: "must be in 0-23"}
		}
		if wh.Hours.End < 0 || wh.Hours.End > 23 {
			return &ValidationError{Field: "working_hours.hours.end", Reason: "must be in 0-23"}
		}
		if wh.Hours.Start > wh.Hours.End {
			return &ValidationError{Field: "working_hours.hours", Reason: "start must not be after end"}
		}
		for _, d := range wh.WorkDays {
			if d < 0 || d > 7 {
				return &ValidationError{Field: "working_hours.work_days", Reason: fmt.Sprintf("invalid weekday %d", d)}
			}
		}
	}

	for i, tc := range rule.TerminationConditions {
		if !terminationFields[tc.Field] {
			return &ValidationError{
				Field:  fmt.Sprintf("termination_conditions[%d].field", i),
				Reason: fmt.Sprintf("unknown alert field %q", tc.Field),
			}
		}
	}

	if rule.MaxEscalations != nil && *rule.MaxEscalations < 1 {
		return &ValidationError{Field: "max_escalations", Reason: "must be >= 1"}
	}

	return nil
}

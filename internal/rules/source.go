package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// FileSource loads externally authored rule definitions from a YAML file
// and merges them into a catalog. A missing file is not an error: the
// catalog simply keeps the built-in defaults.
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed rule source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// ruleSpec mirrors the on-disk rule shape. Termination conditions use the
// legacy "field:value" string form there.
type ruleSpec struct {
	ID                    string            `koanf:"id"`
	Name                  string            `koanf:"name"`
	Description           string            `koanf:"description"`
	Enabled               *bool             `koanf:"enabled"`
	Priority              int               `koanf:"priority"`
	Conditions            conditionsSpec    `koanf:"conditions"`
	Actions               []actionSpec      `koanf:"actions"`
	WorkingHours          *workingHoursSpec `koanf:"working_hours"`
	TerminationConditions []string          `koanf:"termination_conditions"`
	MaxEscalations        *int              `koanf:"max_escalations"`
}

type actionSpec struct {
	DelayMinutes        int      `koanf:"delay_minutes"`
	Channels            []string `koanf:"channels"`
	EscalationLevel     int      `koanf:"escalation_level"`
	NotifyManagers      bool     `koanf:"notify_managers"`
	NotifyExecutives    bool     `koanf:"notify_executives"`
	NotifyOncall        bool     `koanf:"notify_oncall"`
	CreateIncident      bool     `koanf:"create_incident"`
	CreateMajorIncident bool     `koanf:"create_major_incident"`
}

type workingHoursSpec struct {
	Enabled  bool   `koanf:"enabled"`
	Start    int    `koanf:"start"`
	End      int    `koanf:"end"`
	Timezone string `koanf:"timezone"`
	WorkDays []int  `koanf:"work_days"`
}

type conditionsSpec struct {
	Severity            []string `koanf:"severity"`
	ServiceTypes        []string `koanf:"service_types"`
	Component           string   `koanf:"component"`
	DurationMinutes     *int     `koanf:"duration_minutes"`
	Status              []string `koanf:"status"`
	OutsideWorkingHours *bool    `koanf:"outside_working_hours"`
	WorkDaysOnly        *bool    `koanf:"work_days_only"`
}

// MergeInto loads the rule file and upserts each rule into the catalog.
// Rules that fail validation are reported without aborting the merge of
// the remaining rules.
func (s *FileSource) MergeInto(ctx context.Context, catalog *Catalog) error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		slog.Info("rule file not present, using built-in rules", "path", s.path)
		return nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(s.path), kyaml.Parser()); err != nil {
		return fmt.Errorf("load rule file %s: %w", s.path, err)
	}

	var specs []ruleSpec
	if err := k.Unmarshal("rules", &specs); err != nil {
		return fmt.Errorf("parse rule file %s: %w", s.path, err)
	}

	loaded := 0
	for _, spec := range specs {
		rule, err := spec.toDomain()
		if err != nil {
			slog.Error("skipping malformed rule", "rule_id", spec.ID, "error", err)
			continue
		}
		if _, err := catalog.Upsert(ctx, rule); err != nil {
			slog.Error("skipping invalid rule", "rule_id", spec.ID, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("rule file merged", "path", s.path, "loaded", loaded, "skipped", len(specs)-loaded)
	return nil
}

func (s ruleSpec) toDomain() (domain.Rule, error) {
	rule := domain.Rule{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Enabled:     true,
		Priority:    s.Priority,
		Conditions: domain.Conditions{
			ServiceTypes:        s.Conditions.ServiceTypes,
			Component:           s.Conditions.Component,
			DurationMinutes:     s.Conditions.DurationMinutes,
			Statuses:            s.Conditions.Status,
			OutsideWorkingHours: s.Conditions.OutsideWorkingHours,
			WorkDaysOnly:        s.Conditions.WorkDaysOnly,
		},
		MaxEscalations: s.MaxEscalations,
	}
	if s.Enabled != nil {
		rule.Enabled = *s.Enabled
	}

	for _, a := range s.Actions {
		rule.Actions = append(rule.Actions, domain.Action{
			DelayMinutes:        a.DelayMinutes,
			Channels:            a.Channels,
			EscalationLevel:     a.EscalationLevel,
			NotifyManagers:      a.NotifyManagers,
			NotifyExecutives:    a.NotifyExecutives,
			NotifyOncall:        a.NotifyOncall,
			CreateIncident:      a.CreateIncident,
			CreateMajorIncident: a.CreateMajorIncident,
		})
	}

	if s.WorkingHours != nil {
		rule.WorkingHours = &domain.WorkingHours{
			Enabled:  s.WorkingHours.Enabled,
			Hours:    domain.HourRange{Start: s.WorkingHours.Start, End: s.WorkingHours.End},
			Timezone: s.WorkingHours.Timezone,
			WorkDays: s.WorkingHours.WorkDays,
		}
	}

	for _, sev := range s.Conditions.Severity {
		rule.Conditions.Severities = append(rule.Conditions.Severities, domain.Severity(sev))
	}

	for _, raw := range s.TerminationConditions {
		tc, err := domain.ParseTerminationCondition(raw)
		if err != nil {
			return domain.Rule{}, err
		}
		rule.TerminationConditions = append(rule.TerminationConditions, tc)
	}

	return rule, nil
}

package rules

import (
	"log/slog"
	"time"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/clock"
)

// Schedule answers working-hours and workday questions for a rule's
// working-hours configuration.
type Schedule struct {
	clock clock.Clock
}

// NewSchedule creates a schedule evaluator using the given clock.
func NewSchedule(c clock.Clock) *Schedule {
	return &Schedule{clock: c}
}

// IsOutsideWorkingHours reports whether the current local time falls outside
// the configured daily window. A disabled or absent configuration is never
// "outside". The end hour's minute zero still counts as inside; one minute
// past it is outside.
func (s *Schedule) IsOutsideWorkingHours(cfg *domain.WorkingHours) bool {
	if cfg == nil || !cfg.Enabled {
		return false
	}
	now := s.localNow(cfg)
	current := now.Hour()*60 + now.Minute()
	return current < cfg.Hours.Start*60 || current > cfg.Hours.End*60
}

// IsWorkDay reports whether the current local day is one of the configured
// work days. With no configuration every day is a workday. Day 7 is accepted
// as an alias for Sunday.
func (s *Schedule) IsWorkDay(cfg *domain.WorkingHours) bool {
	if cfg == nil || !cfg.Enabled || len(cfg.WorkDays) == 0 {
		return true
	}
	today := int(s.localNow(cfg).Weekday())
	for _, d := range cfg.WorkDays {
		if d == 7 {
			d = 0
		}
		if d == today {
			return true
		}
	}
	return false
}

func (s *Schedule) localNow(cfg *domain.WorkingHours) time.Time {
	now := s.clock.Now()
	if cfg.Timezone == "" {
		return now
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("invalid working-hours timezone, using clock location",
			"timezone", cfg.Timezone,
			"error", err,
		)
		return now
	}
	return now.In(loc)
}

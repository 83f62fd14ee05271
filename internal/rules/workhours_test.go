package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/pkg/clock"
)

func TestSchedule_IsOutsideWorkingHours(t *testing.T) {
	cfg := &domain.WorkingHours{
		Enabled: true,
		Hours:   domain.HourRange{Start: 9, End: 17},
	}

	tests := []struct {
		name    string
		now     time.Time
		outside bool
	}{
		{"one minute before start", time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC), true},
		{"exactly at start", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), false},
		{"midday", time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC), false},
		{"exactly at end", time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), false},
		{"one minute after end", time.Date(2026, 3, 2, 17, 1, 0, 0, time.UTC), true},
		{"late night", time.Date(2026, 3, 2, 23, 45, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSchedule(clock.NewFake(tt.now))
			assert.Equal(t, tt.outside, s.IsOutsideWorkingHours(cfg))
		})
	}
}

func TestSchedule_IsOutsideWorkingHours_Disabled(t *testing.T) {
	s := NewSchedule(clock.NewFake(time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)))

	assert.False(t, s.IsOutsideWorkingHours(nil))
	assert.False(t, s.IsOutsideWorkingHours(&domain.WorkingHours{
		Enabled: false,
		Hours:   domain.HourRange{Start: 9, End: 17},
	}))
}

func TestSchedule_IsOutsideWorkingHours_Timezone(t *testing.T) {
	// 08:00 UTC is 10:00 in Berlin during summer time
	s := NewSchedule(clock.NewFake(time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)))

	cfg := &domain.WorkingHours{
		Enabled:  true,
		Hours:    domain.HourRange{Start: 9, End: 17},
		Timezone: "Europe/Berlin",
	}
	assert.False(t, s.IsOutsideWorkingHours(cfg))

	cfg.Timezone = ""
	assert.True(t, s.IsOutsideWorkingHours(cfg))
}

func TestSchedule_IsOutsideWorkingHours_InvalidTimezone(t *testing.T) {
	s := NewSchedule(clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)))

	cfg := &domain.WorkingHours{
		Enabled:  true,
		Hours:    domain.HourRange{Start: 9, End: 17},
		Timezone: "Not/AZone",
	}
	// Falls back to the clock's own location
	assert.False(t, s.IsOutsideWorkingHours(cfg))
}

func TestSchedule_IsWorkDay(t *testing.T) {
	monday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	weekdays := &domain.WorkingHours{
		Enabled:  true,
		WorkDays: []int{1, 2, 3, 4, 5},
	}

	tests := []struct {
		name    string
		now     time.Time
		cfg     *domain.WorkingHours
		workday bool
	}{
		{"monday with weekday config", monday, weekdays, true},
		{"sunday with weekday config", sunday, weekdays, false},
		{"no config means every day works", sunday, nil, true},
		{"empty work days means every day works", sunday, &domain.WorkingHours{Enabled: true}, true},
		{"seven aliases sunday", sunday, &domain.WorkingHours{Enabled: true, WorkDays: []int{7}}, true},
		{"zero is sunday", sunday, &domain.WorkingHours{Enabled: true, WorkDays: []int{0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSchedule(clock.NewFake(tt.now))
			assert.Equal(t, tt.workday, s.IsWorkDay(tt.cfg))
		})
	}
}

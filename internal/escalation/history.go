package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// HistoryFilter narrows a history query. Zero-valued fields match
// everything; the date bounds are inclusive.
type HistoryFilter struct {
	AlertID      string
	EscalationID string
	Action       domain.HistoryAction
	DateFrom     *time.Time
	DateTo       *time.Time
}

// HistoryLog is the append-only record of escalation lifecycle and action
// events. Entries are never deleted; queries return newest-first.
type HistoryLog interface {
	Record(ctx context.Context, entry domain.HistoryEntry) error
	Query(ctx context.Context, filter HistoryFilter) ([]domain.HistoryEntry, error)
}

// MemoryHistory is the in-process HistoryLog implementation.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries []domain.HistoryEntry
}

// NewMemoryHistory creates an empty in-memory history log.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// Record appends an entry. It always succeeds.
func (h *MemoryHistory) Record(_ context.Context, entry domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Channels = append([]string(nil), entry.Channels...)

	h.mu.Lock()
	h.entries = append(h.entries, entry)
	h.mu.Unlock()
	return nil
}

// Query returns matching entries, newest first.
func (h *MemoryHistory) Query(_ context.Context, filter HistoryFilter) ([]domain.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.HistoryEntry, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0; i-- {
		e := h.entries[i]
		if !matchesFilter(e, filter) {
			continue
		}
		e.Channels = append([]string(nil), e.Channels...)
		out = append(out, e)
	}
	return out, nil
}

func matchesFilter(e domain.HistoryEntry, f HistoryFilter) bool {
	if f.AlertID != "" && e.AlertID != f.AlertID {
		return false
	}
	if f.EscalationID != "" && e.EscalationID != f.EscalationID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.DateFrom != nil && e.Timestamp.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && e.Timestamp.After(*f.DateTo) {
		return false
	}
	return true
}

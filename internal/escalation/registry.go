package escalation

import (
	"sync"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// registry holds all known escalations. The outer lock guards the map
// only; each entry carries its own lock for single-writer-per-escalation
// semantics.
type registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

func (r *registry) add(esc *domain.Escalation) {
	r.mu.Lock()
	r.entries[esc.ID] = &entry{esc: esc}
	r.mu.Unlock()
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.entries[id]
	return ent, ok
}

func (r *registry) all() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.entries))
	for _, ent := range r.entries {
		out = append(out, ent)
	}
	return out
}

func (r *registry) activeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, ent := range r.entries {
		ent.lock()
		active := ent.esc.Status == domain.EscalationStatusActive
		ent.unlock()
		if active {
			out = append(out, id)
		}
	}
	return out
}

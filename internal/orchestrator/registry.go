package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punkouter25/podebaterap/internal/domain"
)

// Registry maps opaque session IDs to running orchestrators. Insert,
// lookup, and removal are all guarded by a single mutex, per the
// shared-resource policy — it is held only long enough to touch the map.
type Registry struct {
	deps Dependencies

	mu       sync.Mutex
	sessions map[string]*Orchestrator
}

// NewRegistry builds a Registry that hands deps to every session it starts.
func NewRegistry(deps Dependencies) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Orchestrator)}
}

// StartDebate validates and launches a new session, returning its ID
// and event stream. The parent context bounds the session's lifetime
// (e.g. process shutdown); per-session cancellation happens via Cancel.
func (r *Registry) StartDebate(parent context.Context, pro, con domain.Persona, topic domain.Topic) (string, <-chan domain.Snapshot, error) {
	id := uuid.NewString()

	o, err := startDebate(parent, id, pro, con, topic, r.deps)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	r.sessions[id] = o
	r.mu.Unlock()

	return id, o.Events(), nil
}

// Get returns the orchestrator for id, if one is registered.
func (r *Registry) Get(id string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.sessions[id]
	return o, ok
}

// AckAudio forwards to the named session's Orchestrator.AckAudio.
func (r *Registry) AckAudio(id string) error {
	o, ok := r.Get(id)
	if !ok {
		return domain.NewError(domain.KindNotFound, "orchestrator.Registry.AckAudio", errNoSuchSession(id))
	}
	return o.AckAudio()
}

// Cancel forwards to the named session's Orchestrator.Cancel.
func (r *Registry) Cancel(id string) error {
	o, ok := r.Get(id)
	if !ok {
		return domain.NewError(domain.KindNotFound, "orchestrator.Registry.Cancel", errNoSuchSession(id))
	}
	o.Cancel()
	return nil
}

// Remove drops id from the registry without regard to its phase. Used
// for explicit close; SweepExpired is the TTL-driven equivalent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// SweepExpired removes every session that finished more than ttl ago.
// Intended to be called periodically (e.g. from a ticker in cmd/serve).
func (r *Registry) SweepExpired(ttl time.Duration) int {
	now := time.Now()
	removed := 0

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.sessions {
		finishedAt, done := o.FinishedAt()
		if done && now.Sub(finishedAt) >= ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports how many sessions are currently registered, regardless
// of phase. Primarily for tests and health reporting.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type noSuchSessionError struct{ id string }

func (e noSuchSessionError) Error() string { return "no such session: " + e.id }

func errNoSuchSession(id string) error { return noSuchSessionError{id: id} }

package broker

import (
	"errors"
	"sync"
	"time"
)

// ErrSlotUnavailable covers both an unknown connection id and a slot that
// was already claimed; claimants cannot distinguish the two.
var ErrSlotUnavailable = errors.New("relay slot unavailable")

// Slot parks the credential of a freshly minted upstream session under an
// unguessable connection id until exactly one relay connection claims it.
type Slot struct {
	ConnectionID string
	SessionID    string
	Credential   string
	CreatedAt    time.Time

	claimed bool
}

// Registry owns the pending-slot map. Every lifecycle transition happens
// under one mutex, so a sweep never races a claim.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*Slot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*Slot)}
}

// Register adds a slot keyed by its connection id.
func (r *Registry) Register(s *Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[s.ConnectionID] = s
}

// Claim marks the slot claimed and returns it. A second claim, or a claim
// of an unknown id, fails with ErrSlotUnavailable.
func (r *Registry) Claim(connectionID string) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[connectionID]
	if !ok || s.claimed {
		return nil, ErrSlotUnavailable
	}
	s.claimed = true
	return s, nil
}

// Remove deletes a slot. Removing an absent id is a no-op, which makes the
// relay pair's teardown idempotent.
func (r *Registry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, connectionID)
}

// Sweep evicts unclaimed slots older than ttl and returns the eviction
// count. Claimed slots belong to their relay pair, which removes them when
// the pair closes.
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	evicted := 0
	for id, s := range r.slots {
		if !s.claimed && s.CreatedAt.Before(cutoff) {
			delete(r.slots, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of registered slots, claimed included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// PendingLen reports the number of slots still waiting for a claim.
func (r *Registry) PendingLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.slots {
		if !s.claimed {
			n++
		}
	}
	return n
}

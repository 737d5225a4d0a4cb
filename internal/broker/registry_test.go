package broker

import (
	"errors"
	"testing"
	"time"
)

func TestRegistryClaimOnce(t *testing.T) {
	r := NewRegistry()
	r.Register(&Slot{ConnectionID: "conn-1", SessionID: "sess-1", Credential: "ek", CreatedAt: time.Now()})

	slot, err := r.Claim("conn-1")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if slot.SessionID != "sess-1" || slot.Credential != "ek" {
		t.Errorf("claimed slot = %+v", slot)
	}

	if _, err := r.Claim("conn-1"); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("second Claim() error = %v, want ErrSlotUnavailable", err)
	}
}

func TestRegistryClaimUnknown(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Claim("nope"); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("Claim() error = %v, want ErrSlotUnavailable", err)
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(&Slot{ConnectionID: "conn-1", CreatedAt: time.Now()})

	r.Remove("conn-1")
	r.Remove("conn-1")
	r.Remove("never-existed")

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistrySweepEvictsOnlyExpiredUnclaimed(t *testing.T) {
	r := NewRegistry()
	r.Register(&Slot{ConnectionID: "expired", CreatedAt: time.Now().Add(-time.Hour)})
	r.Register(&Slot{ConnectionID: "fresh", CreatedAt: time.Now()})
	r.Register(&Slot{ConnectionID: "expired-claimed", CreatedAt: time.Now().Add(-time.Hour)})
	if _, err := r.Claim("expired-claimed"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	evicted := r.Sweep(30 * time.Minute)

	if evicted != 1 {
		t.Errorf("Sweep() = %d, want 1", evicted)
	}
	if _, err := r.Claim("expired"); !errors.Is(err, ErrSlotUnavailable) {
		t.Error("expired slot is still claimable after sweep")
	}
	if _, err := r.Claim("fresh"); err != nil {
		t.Errorf("fresh slot gone after sweep: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryPendingLen(t *testing.T) {
	r := NewRegistry()
	r.Register(&Slot{ConnectionID: "a", CreatedAt: time.Now()})
	r.Register(&Slot{ConnectionID: "b", CreatedAt: time.Now()})
	if _, err := r.Claim("a"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	if got := r.PendingLen(); got != 1 {
		t.Errorf("PendingLen() = %d, want 1", got)
	}
	if got := r.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

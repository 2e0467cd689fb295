package services

import (
	"sync"

	"github.com/closedroom/portal/internal/models"
)

// Grant marks one item as optimistically owned until the next
// reconciliation.
type Grant struct {
	Kind models.ContentKind
	ID   string
}

// EntitlementStore mirrors the server's balance and ownership for a single
// user session. It keeps two layers: the authoritative snapshot last
// fetched from the server, and an optimistic overlay applied locally for
// UI latency smoothing. Reconciliation always replaces the overlay, never
// merges into it; the server is the system of record.
//
// Reconciliations are tagged with a monotonic fetch sequence so that a
// stale response arriving late cannot revert newer state.
type EntitlementStore struct {
	mu       sync.Mutex
	snapshot models.Entitlements

	seq     uint64 // last issued fetch tag
	applied uint64 // tag of the last accepted reconciliation

	overlayDelta  int
	overlayGrants map[Grant]bool
}

func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{overlayGrants: map[Grant]bool{}}
}

// Balance is the snapshot balance plus any optimistic delta, never
// negative.
func (s *EntitlementStore) Balance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.snapshot.Tokens + s.overlayDelta
	if b < 0 {
		b = 0
	}
	return b
}

// IsOwned reports permanent or optimistically granted ownership.
func (s *EntitlementStore) IsOwned(kind models.ContentKind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlayGrants[Grant{Kind: kind, ID: id}] {
		return true
	}
	return s.snapshot.Owned(kind, id)
}

// ApplyOptimistic adjusts the local view without touching the snapshot.
// The overlay is discarded wholesale on the next accepted reconciliation.
func (s *EntitlementStore) ApplyOptimistic(delta int, grants ...Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlayDelta += delta
	for _, g := range grants {
		s.overlayGrants[g] = true
	}
}

// BeginFetch hands out the sequence tag for a server round-trip. Call it
// before issuing the request and pass the tag to Reconcile with the
// response, so out-of-order completions are discarded.
func (s *EntitlementStore) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Reconcile replaces the snapshot with server truth and clears the
// overlay. A tag at or below the last accepted one is stale and is
// dropped; the return value reports whether the write was applied.
func (s *EntitlementStore) Reconcile(seq uint64, snap models.Entitlements) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return false
	}
	s.applied = seq
	s.snapshot = snap
	s.overlayDelta = 0
	s.overlayGrants = map[Grant]bool{}
	return true
}

// Snapshot returns a copy of the authoritative layer, without the overlay.
func (s *EntitlementStore) Snapshot() models.Entitlements {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

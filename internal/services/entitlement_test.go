package services

import (
	"testing"

	"github.com/closedroom/portal/internal/models"
)

func TestEntitlementOptimisticOverlay(t *testing.T) {
	s := NewEntitlementStore()
	seq := s.BeginFetch()
	s.Reconcile(seq, models.Entitlements{Tokens: 10})

	s.ApplyOptimistic(-3, Grant{Kind: models.KindArticle, ID: "A1"})
	if got := s.Balance(); got != 7 {
		t.Fatalf("balance %d, want 7", got)
	}
	if !s.IsOwned(models.KindArticle, "A1") {
		t.Fatal("optimistic grant not visible")
	}
	if s.Snapshot().Tokens != 10 {
		t.Fatal("overlay leaked into the snapshot")
	}
}

func TestEntitlementReconcileClearsOverlay(t *testing.T) {
	s := NewEntitlementStore()
	s.ApplyOptimistic(-3, Grant{Kind: models.KindArticle, ID: "A1"})

	seq := s.BeginFetch()
	if !s.Reconcile(seq, models.Entitlements{Tokens: 7, PurchasedArticles: []string{"A1"}}) {
		t.Fatal("reconcile rejected")
	}
	if got := s.Balance(); got != 7 {
		t.Fatalf("balance %d, want 7", got)
	}
	// Ownership survives via the snapshot, not the overlay.
	if !s.IsOwned(models.KindArticle, "A1") {
		t.Fatal("snapshot ownership lost")
	}
	s.ApplyOptimistic(0) // no-op delta, just proving the overlay is empty
	if got := s.Balance(); got != 7 {
		t.Fatalf("balance %d after reconcile, want 7", got)
	}
}

func TestEntitlementStaleReconcileDiscarded(t *testing.T) {
	s := NewEntitlementStore()
	first := s.BeginFetch()
	second := s.BeginFetch()

	if !s.Reconcile(second, models.Entitlements{Tokens: 20}) {
		t.Fatal("newer reconcile rejected")
	}
	if s.Reconcile(first, models.Entitlements{Tokens: 5}) {
		t.Fatal("stale reconcile accepted")
	}
	if got := s.Balance(); got != 20 {
		t.Fatalf("balance %d, want 20", got)
	}
}

func TestEntitlementBalanceFloorsAtZero(t *testing.T) {
	s := NewEntitlementStore()
	seq := s.BeginFetch()
	s.Reconcile(seq, models.Entitlements{Tokens: 2})
	s.ApplyOptimistic(-5)
	if got := s.Balance(); got != 0 {
		t.Fatalf("balance %d, want 0", got)
	}
}

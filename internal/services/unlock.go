package services

import (
	"context"
	"errors"

	"github.com/closedroom/portal/internal/models"
)

// ErrAlreadyUnlocked is returned by Begin when the item is already owned.
// Re-unlocking is a benign no-op, never a second charge.
var ErrAlreadyUnlocked = errors.New("item already unlocked")

// PurchaseIntent is the ephemeral confirmation step of one unlock. It is
// created by Begin, consumed by Confirm or Cancel, and never persisted.
type PurchaseIntent struct {
	ItemID    string
	Kind      models.ContentKind
	Price     int
	Confirmed bool
}

// UnlockService runs token-gated unlock transactions: pre-flight balance
// check, explicit price confirmation, a single purchase call, then
// reconciliation of the entitlement mirror. The same flow serves all four
// content kinds.
type UnlockService struct {
	entitlements *EntitlementStore
	purchases    PurchaseClient
	users        UserClient
}

func NewUnlockService(ents *EntitlementStore, purchases PurchaseClient, users UserClient) *UnlockService {
	return &UnlockService{entitlements: ents, purchases: purchases, users: users}
}

// Begin runs the client-side preconditions and, when they pass, returns an
// unconfirmed PurchaseIntent for the UI's confirmation dialog. No network
// call is made here: insufficient balance fails fast, and an already-owned
// item returns ErrAlreadyUnlocked without offering a purchase.
func (s *UnlockService) Begin(itemID string, kind models.ContentKind, price int) (*PurchaseIntent, error) {
	if itemID == "" {
		return nil, NewInvalidError("item id required")
	}
	if s.entitlements.IsOwned(kind, itemID) {
		return nil, ErrAlreadyUnlocked
	}
	if s.entitlements.Balance() < price {
		return nil, NewInsufficientBalanceError(models.InsufficientTokensMessage)
	}
	return &PurchaseIntent{ItemID: itemID, Kind: kind, Price: price}, nil
}

// Confirm issues the purchase after the user approved the exact price.
// On success the entitlement mirror is reconciled from a fresh server
// fetch; on any failure it is left untouched and the server's reason (or a
// network failure) is surfaced.
func (s *UnlockService) Confirm(ctx context.Context, intent *PurchaseIntent) error {
	if intent == nil || intent.Confirmed {
		return NewInvalidError("no pending purchase intent")
	}
	intent.Confirmed = true

	msg, err := s.purchases.Purchase(ctx, intent.Kind, intent.ItemID)
	if err != nil {
		return NewNetworkFailureError(err.Error())
	}
	if msg != models.PurchaseSuccessMessage(intent.Kind) {
		return NewPurchaseRejectedError(msg)
	}

	seq := s.entitlements.BeginFetch()
	snap, err := s.users.Me(ctx)
	if err != nil {
		// The server accepted the purchase; mirror it optimistically and
		// let the next successful fetch reconcile.
		s.entitlements.ApplyOptimistic(-intent.Price, Grant{Kind: intent.Kind, ID: intent.ItemID})
		return nil
	}
	s.entitlements.Reconcile(seq, *snap)
	return nil
}

// Cancel abandons the confirmation step. No network call is made and no
// state changes.
func (s *UnlockService) Cancel(intent *PurchaseIntent) {
	if intent != nil {
		intent.Confirmed = false
	}
}

package api

import (
	"errors"

	"github.com/closedroom/portal/internal/models"
)

var (
	// ErrNotFound is returned for unknown users, content or invoices.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyPurchased flags an idempotent re-purchase of an owned item.
	ErrAlreadyPurchased = errors.New("already purchased")
	// ErrInsufficientTokens flags a balance that cannot cover the price.
	ErrInsufficientTokens = errors.New("insufficient tokens")
)

// Store is the server-authoritative ledger behind the portal API. The
// memory store backs tests and dev; internal/db provides the SQLite
// implementation.
type Store interface {
	AddUser(u *models.User) error
	GetUser(id string) (*models.User, error)
	// Entitlements assembles the user's balance/ownership snapshot.
	Entitlements(userID string) (*models.Entitlements, error)

	AddArticle(a *models.Article) error
	GetArticle(id string) (*models.Article, error)
	AddDrama(d *models.Drama) error
	GetDrama(id string) (*models.Drama, error)
	AddSurvey(sv *models.Survey) error
	GetSurvey(id string) (*models.Survey, error)

	// GrantPurchase atomically verifies ownership and balance, deducts the
	// price and records the permanent entitlement. A repeat purchase
	// returns ErrAlreadyPurchased without charging.
	GrantPurchase(userID string, kind models.ContentKind, itemID string, price int) error

	AddInvoice(inv *models.Invoice) error
	GetInvoice(id string) (*models.Invoice, error)
	// SettleInvoice marks the invoice paid and credits its token quantity
	// to the owning user. The boolean is false when the invoice had
	// already been settled; the credit is applied at most once.
	SettleInvoice(id string) (*models.Invoice, bool, error)
}

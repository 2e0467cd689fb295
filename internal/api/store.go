package api

import (
	"sync"

	"github.com/closedroom/portal/internal/models"
)

type purchase struct {
	Kind   models.ContentKind
	ItemID string
}

// memoryStore is the in-memory Store used by tests and dev runs. All
// balance mutations happen under one lock, which is what makes purchases
// and settlements atomic.
type memoryStore struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	purchases map[string][]purchase // userID → owned items, append-only
	articles  map[string]*models.Article
	dramas    map[string]*models.Drama
	surveys   map[string]*models.Survey
	invoices  map[string]*models.Invoice
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store { return newMemoryStore() }

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:     map[string]*models.User{},
		purchases: map[string][]purchase{},
		articles:  map[string]*models.Article{},
		dramas:    map[string]*models.Drama{},
		surveys:   map[string]*models.Survey{},
		invoices:  map[string]*models.Invoice{},
	}
}

func (s *memoryStore) AddUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memoryStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) Entitlements(userID string) (*models.Entitlements, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	ent := &models.Entitlements{
		UserID:            u.ID,
		Username:          u.Username,
		Tokens:            u.Tokens,
		PurchasedArticles: []string{},
		PurchasedDramas:   []string{},
		PurchasedEpisodes: []string{},
		PurchasedSurveys:  []string{},
	}
	for _, p := range s.purchases[userID] {
		switch p.Kind {
		case models.KindArticle:
			ent.PurchasedArticles = append(ent.PurchasedArticles, p.ItemID)
		case models.KindDrama:
			ent.PurchasedDramas = append(ent.PurchasedDramas, p.ItemID)
		case models.KindEpisode:
			ent.PurchasedEpisodes = append(ent.PurchasedEpisodes, p.ItemID)
		case models.KindSurvey:
			ent.PurchasedSurveys = append(ent.PurchasedSurveys, p.ItemID)
		}
	}
	return ent, nil
}

func (s *memoryStore) AddArticle(a *models.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.articles[a.ID] = &cp
	return nil
}

func (s *memoryStore) GetArticle(id string) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryStore) AddDrama(d *models.Drama) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.dramas[d.ID] = &cp
	return nil
}

func (s *memoryStore) GetDrama(id string) (*models.Drama, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dramas[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memoryStore) AddSurvey(sv *models.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sv
	s.surveys[sv.ID] = &cp
	return nil
}

func (s *memoryStore) GetSurvey(id string) (*models.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.surveys[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sv
	return &cp, nil
}

func (s *memoryStore) GrantPurchase(userID string, kind models.ContentKind, itemID string, price int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	for _, p := range s.purchases[userID] {
		if p.Kind == kind && p.ItemID == itemID {
			return ErrAlreadyPurchased
		}
	}
	if u.Tokens < price {
		return ErrInsufficientTokens
	}
	u.Tokens -= price
	s.purchases[userID] = append(s.purchases[userID], purchase{Kind: kind, ItemID: itemID})
	return nil
}

func (s *memoryStore) AddInvoice(inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *memoryStore) GetInvoice(id string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *memoryStore) SettleInvoice(id string) (*models.Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if inv.Status == models.InvoicePaid {
		cp := *inv
		return &cp, false, nil
	}
	inv.Status = models.InvoicePaid
	if u, ok := s.users[inv.UserID]; ok {
		u.Tokens += inv.Tokens
	}
	cp := *inv
	return &cp, true, nil
}

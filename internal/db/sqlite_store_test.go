package db

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/closedroom/portal/internal/api"
	"github.com/closedroom/portal/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Every pooled connection to :memory: is a separate database; pin to one.
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	if err := RunMigrations(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s, err := NewSQLiteStore(conn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSQLiteUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddUser(&models.User{ID: "u1", Username: "alice", Tokens: 10}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	u, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Username != "alice" || u.Tokens != 10 {
		t.Fatalf("got %+v", u)
	}
	if _, err := s.GetUser("missing"); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSQLiteGrantPurchase(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddUser(&models.User{ID: "u1", Username: "alice", Tokens: 10}); err != nil {
		t.Fatalf("add user: %v", err)
	}

	if err := s.GrantPurchase("u1", models.KindArticle, "A1", 2); err != nil {
		t.Fatalf("grant: %v", err)
	}
	ent, err := s.Entitlements("u1")
	if err != nil {
		t.Fatalf("entitlements: %v", err)
	}
	if ent.Tokens != 8 || !ent.Owned(models.KindArticle, "A1") {
		t.Fatalf("got %+v", ent)
	}

	if err := s.GrantPurchase("u1", models.KindArticle, "A1", 2); !errors.Is(err, api.ErrAlreadyPurchased) {
		t.Fatalf("repeat got %v, want ErrAlreadyPurchased", err)
	}
	if err := s.GrantPurchase("u1", models.KindDrama, "D1", 100); !errors.Is(err, api.ErrInsufficientTokens) {
		t.Fatalf("expensive got %v, want ErrInsufficientTokens", err)
	}

	// Neither failed grant may have charged.
	ent, _ = s.Entitlements("u1")
	if ent.Tokens != 8 {
		t.Fatalf("tokens %d, want 8", ent.Tokens)
	}
}

func TestSQLiteSurveyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	sv := &models.Survey{
		ID:          "S1",
		Title:       "SASI судалгаа",
		SurveyToken: 3,
		Questions: []models.SurveyQuestion{
			{Text: "q1", Options: []string{"A. Бүрэн үнэн", "E. Бүрэн буруу"}},
		},
		Results: []models.SurveyResult{{Label: "Бага", MinScore: 1, MaxScore: 5}},
	}
	if err := s.AddSurvey(sv); err != nil {
		t.Fatalf("add survey: %v", err)
	}
	got, err := s.GetSurvey("S1")
	if err != nil {
		t.Fatalf("get survey: %v", err)
	}
	if len(got.Questions) != 1 || len(got.Questions[0].Options) != 2 {
		t.Fatalf("questions %+v", got.Questions)
	}
	if len(got.Results) != 1 || got.Results[0].Label != "Бага" {
		t.Fatalf("results %+v", got.Results)
	}
}

func TestSQLiteSettleInvoice(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddUser(&models.User{ID: "u1", Username: "alice", Tokens: 10}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if err := s.AddInvoice(&models.Invoice{ID: "inv1", UserID: "u1", Tokens: 5, Status: models.InvoicePending}); err != nil {
		t.Fatalf("add invoice: %v", err)
	}

	inv, settled, err := s.SettleInvoice("inv1")
	if err != nil || !settled || inv.Status != models.InvoicePaid {
		t.Fatalf("settle got inv=%+v settled=%v err=%v", inv, settled, err)
	}

	// Replay marks nothing and credits nothing further.
	inv, settled, err = s.SettleInvoice("inv1")
	if err != nil || settled || inv.Status != models.InvoicePaid {
		t.Fatalf("replay got inv=%+v settled=%v err=%v", inv, settled, err)
	}

	u, _ := s.GetUser("u1")
	if u.Tokens != 15 {
		t.Fatalf("tokens %d, want 15", u.Tokens)
	}

	if _, _, err := s.SettleInvoice("missing"); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("missing got %v, want ErrNotFound", err)
	}
}

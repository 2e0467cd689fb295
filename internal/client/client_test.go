package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/closedroom/portal/internal/api"
	"github.com/closedroom/portal/internal/middleware"
	"github.com/closedroom/portal/internal/models"
	"github.com/closedroom/portal/internal/services"
)

func newSeededClient(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	api.NewRouter(api.NewMemoryStore(), middleware.SignToken).Register(mux)
	srv := httptest.NewServer(middleware.WithAuth(mux))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/seed", "application/json", nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	defer resp.Body.Close()
	var seeded struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&seeded); err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	return New(srv.URL, seeded.Token)
}

func TestClientMe(t *testing.T) {
	c := newSeededClient(t)
	ent, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if ent.Tokens != 10 {
		t.Fatalf("tokens %d, want 10", ent.Tokens)
	}
}

func TestClientUnauthorized(t *testing.T) {
	c := newSeededClient(t)
	c.token = "not-a-token"
	_, err := c.Me(context.Background())
	if !services.HasErrorCode(err, services.ErrorUnauthorized) {
		t.Fatalf("got %v, want unauthorized", err)
	}
}

func TestClientPurchaseMessages(t *testing.T) {
	c := newSeededClient(t)
	ctx := context.Background()

	msg, err := c.Purchase(ctx, models.KindArticle, "A1")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if msg != models.PurchaseSuccessMessage(models.KindArticle) {
		t.Fatalf("message %q", msg)
	}

	msg, err = c.Purchase(ctx, models.KindArticle, "A1")
	if err != nil {
		t.Fatalf("repeat purchase: %v", err)
	}
	if msg != models.PurchaseOwnedMessage(models.KindArticle) {
		t.Fatalf("repeat message %q", msg)
	}
}

func TestClientEpisodePurchase(t *testing.T) {
	c := newSeededClient(t)
	msg, err := c.Purchase(context.Background(), models.KindEpisode, models.EpisodeID("D1", 3))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if msg != models.PurchaseSuccessMessage(models.KindEpisode) {
		t.Fatalf("message %q", msg)
	}

	if _, err := c.Purchase(context.Background(), models.KindEpisode, "no-slash"); err == nil {
		t.Fatal("malformed episode id accepted")
	}
}

func TestClientInvoiceRoundTrip(t *testing.T) {
	c := newSeededClient(t)
	ctx := context.Background()

	inv, err := c.CreateInvoice(ctx, 5)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	st, err := c.InvoiceStatus(ctx, inv.InvoiceID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != models.InvoicePending {
		t.Fatalf("status %q, want PENDING", st.Status)
	}
}

func TestClientContentFetches(t *testing.T) {
	c := newSeededClient(t)
	ctx := context.Background()

	sv, err := c.Survey(ctx, "SASI-SAMPLE")
	if err != nil {
		t.Fatalf("survey: %v", err)
	}
	if len(sv.Questions) != 18 {
		t.Fatalf("questions %d, want 18", len(sv.Questions))
	}
	if _, err := c.Article(ctx, "missing"); !services.HasErrorCode(err, services.ErrorNotFound) {
		t.Fatalf("missing article got %v, want not_found", err)
	}
	plans, err := c.Plans(ctx)
	if err != nil {
		t.Fatalf("plans: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("plans %d, want 3", len(plans))
	}
}

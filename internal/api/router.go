package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/closedroom/portal/internal/middleware"
	"github.com/closedroom/portal/internal/models"
)

// TokenSigner mints a bearer token for a user (wired to middleware.SignToken).
type TokenSigner func(uid, username string, ttl time.Duration) (string, error)

// Router is the portal API: content reads, token-gated purchases and the
// qPay invoice endpoints. It is the server-authoritative counterparty of
// the client-side services.
type Router struct {
	store     Store
	signToken TokenSigner
	now       func() time.Time
}

func NewRouter(store Store, signer TokenSigner) *Router {
	return &Router{store: store, signToken: signer, now: func() time.Time { return time.Now().UTC() }}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/seed", rt.handleSeed)                                     // POST
	mux.HandleFunc("/api/users/me", rt.requireUser(rt.handleMe))                   // GET
	mux.HandleFunc("/api/plans", rt.handlePlans)                                   // GET
	mux.HandleFunc("/api/articles/", rt.handleArticle)                             // GET /api/articles/{id}
	mux.HandleFunc("/api/articles/purchase", rt.requireUser(rt.handlePurchase))    // POST
	mux.HandleFunc("/api/dramas/", rt.handleDrama)                                 // GET /api/dramas/{id}
	mux.HandleFunc("/api/dramas/purchase", rt.requireUser(rt.handlePurchase))      // POST
	mux.HandleFunc("/api/episodes/purchase", rt.requireUser(rt.handlePurchase))    // POST
	mux.HandleFunc("/api/surveys/", rt.handleSurvey)                               // GET /api/surveys/{id}
	mux.HandleFunc("/api/surveys/purchase", rt.requireUser(rt.handlePurchase))     // POST
	mux.HandleFunc("/api/qpay/invoice", rt.requireUser(rt.handleCreateInvoice))    // POST
	mux.HandleFunc("/api/qpay/status/", rt.handleInvoiceStatus)                    // GET
	mux.HandleFunc("/api/qpay/callback/", rt.handleInvoiceCallback)                // POST
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (rt *Router) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func newID() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }

var sasiOptions = []string{
	"A. Бүрэн үнэн",
	"B. Хэсэгчлэн үнэн",
	"C. Дунд зэрэг",
	"D. Хэсэгчлэн буруу",
	"E. Бүрэн буруу",
}

// POST /api/seed — create a demo user plus sample content, and mint a
// bearer token for the user.
func (rt *Router) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := &models.User{ID: "demo", Username: "demo", Tokens: 10, CreatedAt: rt.now()}
	if err := rt.store.AddUser(user); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	questions := make([]models.SurveyQuestion, 0, 18)
	for i := 0; i < 18; i++ {
		questions = append(questions, models.SurveyQuestion{Text: fmt.Sprintf("Асуулт %d", i+1), Options: sasiOptions})
	}
	survey := &models.Survey{
		ID:          "SASI-SAMPLE",
		Title:       "SASI — Бэлгийн сэтгэл ханамжийн индекс",
		Description: "18 асуулттай өөрийн үнэлгээний тест",
		SurveyToken: 3,
		Questions:   questions,
		Results: []models.SurveyResult{
			{Label: "Бага", Description: "Сэтгэл ханамж бага түвшинд байна", MinScore: 18, MaxScore: 41},
			{Label: "Дунд", Description: "Сэтгэл ханамж дундаж түвшинд байна", MinScore: 42, MaxScore: 65},
			{Label: "Өндөр", Description: "Сэтгэл ханамж өндөр түвшинд байна", MinScore: 66, MaxScore: 90},
		},
	}
	article := &models.Article{ID: "A1", Title: "Нойр ба дархлаа", Description: "Судалгааны тойм", ArticleToken: 2}
	drama := &models.Drama{ID: "D1", Title: "Хаалттай өрөө", Description: "Цуврал", TotalEpisodes: 8, FreeEpisodes: 2, DramaToken: 12, EpisodeToken: 2}
	for _, err := range []error{rt.store.AddSurvey(survey), rt.store.AddArticle(article), rt.store.AddDrama(drama)} {
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	token := ""
	if rt.signToken != nil {
		t, err := rt.signToken(user.ID, user.Username, 24*time.Hour)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		token = t
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"user_id":    user.ID,
		"token":      token,
		"survey_id":  survey.ID,
		"article_id": article.ID,
		"drama_id":   drama.ID,
	})
}

// GET /api/users/me — the authoritative balance/ownership snapshot.
func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	ent, err := rt.store.Entitlements(uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

var tokenPlans = []models.TokenPlan{
	{Name: "Starter", Tokens: 1, TotalPriceMNT: 20000, Description: "Анхны туршилт, яаралгүй асуултад тохиромжтой"},
	{Name: "Professional", Tokens: 5, TotalPriceMNT: 60000, Description: "Идэвхтэй хэрэглэгчдэд хамгийн тохиромжтой"},
	{Name: "Enterprise", Tokens: 10, TotalPriceMNT: 100000, Description: "Гэр бүл, багуудад зориулав"},
}

// GET /api/plans
func (rt *Router) handlePlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, tokenPlans)
}

func pathID(r *http.Request, prefix string) string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	return strings.TrimSuffix(rest, "/")
}

// GET /api/articles/{id}
func (rt *Router) handleArticle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a, err := rt.store.GetArticle(pathID(r, "/api/articles/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GET /api/dramas/{id}
func (rt *Router) handleDrama(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	d, err := rt.store.GetDrama(pathID(r, "/api/dramas/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GET /api/surveys/{id}
func (rt *Router) handleSurvey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sv, err := rt.store.GetSurvey(pathID(r, "/api/surveys/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

// POST /api/{kind}s/purchase
// Bodies: {articleId} | {dramaId} | {surveyId} | {dramaId, episode}.
// Business outcomes are always 200 with a message; the client recognizes
// success by the exact per-kind success string.
func (rt *Router) handlePurchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ArticleID string `json:"articleId"`
		DramaID   string `json:"dramaId"`
		SurveyID  string `json:"surveyId"`
		Episode   int    `json:"episode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		kind   models.ContentKind
		itemID string
		price  int
	)
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/articles/"):
		a, err := rt.store.GetArticle(req.ArticleID)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		kind, itemID, price = models.KindArticle, a.ID, a.ArticleToken
	case strings.HasPrefix(r.URL.Path, "/api/surveys/"):
		sv, err := rt.store.GetSurvey(req.SurveyID)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		kind, itemID, price = models.KindSurvey, sv.ID, sv.SurveyToken
	case strings.HasPrefix(r.URL.Path, "/api/episodes/"):
		d, err := rt.store.GetDrama(req.DramaID)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if req.Episode < 1 || req.Episode > d.TotalEpisodes {
			http.Error(w, "episode out of range", http.StatusBadRequest)
			return
		}
		kind, itemID, price = models.KindEpisode, models.EpisodeID(d.ID, req.Episode), d.EpisodeToken
	default:
		d, err := rt.store.GetDrama(req.DramaID)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		kind, itemID, price = models.KindDrama, d.ID, d.DramaToken
	}

	uid, _ := middleware.UserIDFromContext(r.Context())
	err := rt.store.GrantPurchase(uid, kind, itemID, price)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": models.PurchaseSuccessMessage(kind)})
	case errors.Is(err, ErrAlreadyPurchased):
		writeJSON(w, http.StatusOK, map[string]string{"message": models.PurchaseOwnedMessage(kind)})
	case errors.Is(err, ErrInsufficientTokens):
		writeJSON(w, http.StatusOK, map[string]string{"message": models.InsufficientTokensMessage})
	case errors.Is(err, ErrNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func paymentURLs(invoiceID string) []models.PaymentURL {
	return []models.PaymentURL{
		{Name: "qPay хэтэвч", Description: "qPay wallet", Logo: "/images/banks/qpay.png", Link: "qpaywallet://q?qPay_QRcode=" + invoiceID},
		{Name: "Хаан банк", Description: "Khan bank", Logo: "/images/banks/khan.png", Link: "khanbank://q?qPay_QRcode=" + invoiceID},
		{Name: "Худалдаа хөгжлийн банк", Description: "TDB online", Logo: "/images/banks/tdb.png", Link: "tdbbank://q?qPay_QRcode=" + invoiceID},
		{Name: "Төрийн банк", Description: "State bank", Logo: "/images/banks/state.png", Link: "statebank://q?qPay_QRcode=" + invoiceID},
		{Name: "МОСТ мони", Description: "Most money", Logo: "/images/banks/most.png", Link: "most://q?qPay_QRcode=" + invoiceID},
	}
}

// POST /api/qpay/invoice — create an invoice for a token quantity. The
// invoice is immutable once issued; only its status changes.
func (rt *Router) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Tokens int `json:"tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Tokens <= 0 {
		http.Error(w, "tokens must be positive", http.StatusBadRequest)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	inv := &models.Invoice{ID: newID(), UserID: uid, Tokens: req.Tokens, Status: models.InvoicePending, CreatedAt: rt.now()}
	if err := rt.store.AddInvoice(inv); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, models.PaymentInvoice{
		InvoiceID: inv.ID,
		QRImage:   base64.StdEncoding.EncodeToString([]byte("QPAY:" + inv.ID)),
		URLs:      paymentURLs(inv.ID),
	})
}

// GET /api/qpay/status/{id}
func (rt *Router) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inv, err := rt.store.GetInvoice(pathID(r, "/api/qpay/status/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, models.PaymentStatus{InvoiceID: inv.ID, Status: inv.Status})
}

// POST /api/qpay/callback/{id} — gateway notification that the invoice was
// paid. Settlement credits the token quantity at most once, so replayed
// callbacks are harmless.
func (rt *Router) handleInvoiceCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inv, _, err := rt.store.SettleInvoice(pathID(r, "/api/qpay/callback/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, models.PaymentStatus{InvoiceID: inv.ID, Status: inv.Status})
}

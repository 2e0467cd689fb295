// Package client implements the portal API collaborators consumed by the
// service layer: the per-kind purchase endpoint, the user snapshot fetch
// and the qPay invoice endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/closedroom/portal/internal/models"
	"github.com/closedroom/portal/internal/services"
)

// Client is a bearer-token HTTP client for one user session. It satisfies
// services.PurchaseClient, services.UserClient and services.InvoiceClient.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusUnauthorized {
		return services.NewUnauthorizedError("unauthorized")
	}
	if resp.StatusCode == http.StatusNotFound {
		return services.NewNotFoundError(method + " " + path + ": not found")
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Me fetches the authoritative balance/ownership snapshot.
func (c *Client) Me(ctx context.Context) (*models.Entitlements, error) {
	var ent models.Entitlements
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &ent); err != nil {
		return nil, err
	}
	return &ent, nil
}

// Purchase issues one purchase request and returns the server's message
// verbatim. Episode item IDs are the composite form built by
// models.EpisodeID.
func (c *Client) Purchase(ctx context.Context, kind models.ContentKind, itemID string) (string, error) {
	var path string
	body := map[string]any{}
	switch kind {
	case models.KindArticle:
		path, body["articleId"] = "/api/articles/purchase", itemID
	case models.KindDrama:
		path, body["dramaId"] = "/api/dramas/purchase", itemID
	case models.KindSurvey:
		path, body["surveyId"] = "/api/surveys/purchase", itemID
	case models.KindEpisode:
		dramaID, episode, err := splitEpisodeID(itemID)
		if err != nil {
			return "", err
		}
		path, body["dramaId"], body["episode"] = "/api/episodes/purchase", dramaID, episode
	default:
		return "", fmt.Errorf("unknown content kind %q", kind)
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func splitEpisodeID(itemID string) (string, int, error) {
	i := strings.LastIndex(itemID, "/")
	if i <= 0 {
		return "", 0, fmt.Errorf("malformed episode id %q", itemID)
	}
	n, err := strconv.Atoi(itemID[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed episode id %q", itemID)
	}
	return itemID[:i], n, nil
}

// CreateInvoice requests a qPay invoice for a token quantity.
func (c *Client) CreateInvoice(ctx context.Context, tokens int) (*models.PaymentInvoice, error) {
	var inv models.PaymentInvoice
	if err := c.do(ctx, http.MethodPost, "/api/qpay/invoice", map[string]int{"tokens": tokens}, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// InvoiceStatus polls one invoice's payment state.
func (c *Client) InvoiceStatus(ctx context.Context, invoiceID string) (*models.PaymentStatus, error) {
	var st models.PaymentStatus
	if err := c.do(ctx, http.MethodGet, "/api/qpay/status/"+invoiceID, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Survey fetches one survey instrument.
func (c *Client) Survey(ctx context.Context, id string) (*models.Survey, error) {
	var sv models.Survey
	if err := c.do(ctx, http.MethodGet, "/api/surveys/"+id, nil, &sv); err != nil {
		return nil, err
	}
	return &sv, nil
}

// Article fetches one article.
func (c *Client) Article(ctx context.Context, id string) (*models.Article, error) {
	var a models.Article
	if err := c.do(ctx, http.MethodGet, "/api/articles/"+id, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Drama fetches one drama.
func (c *Client) Drama(ctx context.Context, id string) (*models.Drama, error) {
	var d models.Drama
	if err := c.do(ctx, http.MethodGet, "/api/dramas/"+id, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Plans fetches the token bundle catalog.
func (c *Client) Plans(ctx context.Context) ([]models.TokenPlan, error) {
	var plans []models.TokenPlan
	if err := c.do(ctx, http.MethodGet, "/api/plans", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

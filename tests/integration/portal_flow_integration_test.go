//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("PORTAL_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:8080"
}

func TestPortalJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	var seedResp struct {
		Token     string `json:"token"`
		UserID    string `json:"user_id"`
		SurveyID  string `json:"survey_id"`
		ArticleID string `json:"article_id"`
		DramaID   string `json:"drama_id"`
	}
	doPost(t, client, base+"/api/seed", "", nil, &seedResp)
	if seedResp.Token == "" || seedResp.SurveyID == "" {
		t.Fatalf("unexpected seed response: %+v", seedResp)
	}
	token := seedResp.Token

	var me struct {
		Tokens           int      `json:"tokens"`
		PurchasedSurveys []string `json:"purchasedSurveys"`
	}
	doGet(t, client, base+"/api/users/me", token, &me)
	startBalance := me.Tokens

	var purchase struct {
		Message string `json:"message"`
	}
	doPost(t, client, base+"/api/surveys/purchase", token, map[string]string{
		"surveyId": seedResp.SurveyID,
	}, &purchase)
	if purchase.Message != "Судалгаа амжилттай худалдаж авлаа" {
		t.Fatalf("purchase message %q", purchase.Message)
	}

	// A second attempt is the owned no-op, not a second charge.
	doPost(t, client, base+"/api/surveys/purchase", token, map[string]string{
		"surveyId": seedResp.SurveyID,
	}, &purchase)
	if !strings.Contains(purchase.Message, "аль хэдийн худалдаж авсан") {
		t.Fatalf("repeat purchase message %q", purchase.Message)
	}

	doGet(t, client, base+"/api/users/me", token, &me)
	if len(me.PurchasedSurveys) == 0 {
		t.Fatalf("survey missing from entitlements: %+v", me)
	}
	charged := startBalance - me.Tokens
	if charged <= 0 {
		t.Fatalf("balance did not decrease: start=%d now=%d", startBalance, me.Tokens)
	}

	var invoice struct {
		InvoiceID string `json:"invoice_id"`
		QRImage   string `json:"qr_image"`
	}
	doPost(t, client, base+"/api/qpay/invoice", token, map[string]int{"tokens": 5}, &invoice)
	if invoice.InvoiceID == "" || invoice.QRImage == "" {
		t.Fatalf("unexpected invoice response: %+v", invoice)
	}

	var status struct {
		Status string `json:"status"`
	}
	doGet(t, client, base+"/api/qpay/status/"+invoice.InvoiceID, token, &status)
	if status.Status != "PENDING" {
		t.Fatalf("fresh invoice status %q", status.Status)
	}

	doPost(t, client, base+"/api/qpay/callback/"+invoice.InvoiceID, "", nil, &status)
	if status.Status != "PAID" {
		t.Fatalf("settled invoice status %q", status.Status)
	}

	balanceBeforeReplay := 0
	doGet(t, client, base+"/api/users/me", token, &me)
	balanceBeforeReplay = me.Tokens

	// Replayed callback must not credit again.
	doPost(t, client, base+"/api/qpay/callback/"+invoice.InvoiceID, "", nil, &status)
	doGet(t, client, base+"/api/users/me", token, &me)
	if me.Tokens != balanceBeforeReplay {
		t.Fatalf("replayed callback changed balance %d -> %d", balanceBeforeReplay, me.Tokens)
	}
}

func doPost(t *testing.T, client *http.Client, url, token string, body any, out any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(http.MethodPost, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http post %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}

func doGet(t *testing.T, client *http.Client, url, token string, out any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http get %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response from %s: %v", url, err)
	}
}

package models

import (
	"fmt"
	"time"
)

// ContentKind identifies the four purchasable content types.
type ContentKind string

const (
	KindArticle ContentKind = "article"
	KindDrama   ContentKind = "drama"
	KindEpisode ContentKind = "episode"
	KindSurvey  ContentKind = "survey"
)

// User is an account on the portal.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// Entitlements is the server-authoritative view of one user's token balance
// and ownership. Ownership is permanent; unlocks are never revoked.
type Entitlements struct {
	UserID            string   `json:"user_id"`
	Username          string   `json:"username,omitempty"`
	Tokens            int      `json:"tokens"`
	PurchasedArticles []string `json:"purchasedArticles"`
	PurchasedDramas   []string `json:"purchasedDramas"`
	PurchasedEpisodes []string `json:"purchasedEpisodes"`
	PurchasedSurveys  []string `json:"purchasedSurveys"`
}

// Owned reports whether the given item appears in the matching owned set.
func (e *Entitlements) Owned(kind ContentKind, id string) bool {
	var set []string
	switch kind {
	case KindArticle:
		set = e.PurchasedArticles
	case KindDrama:
		set = e.PurchasedDramas
	case KindEpisode:
		set = e.PurchasedEpisodes
	case KindSurvey:
		set = e.PurchasedSurveys
	}
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

// Article is a paywalled text item.
type Article struct {
	ID           string `json:"_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ArticleToken int    `json:"articleToken"`
}

// Drama is a series of episodes. FreeEpisodes is a count: episodes
// 1..FreeEpisodes are watchable without a purchase.
type Drama struct {
	ID            string `json:"_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	TotalEpisodes int    `json:"totalEpisodes"`
	FreeEpisodes  int    `json:"freeEpisodes"`
	DramaToken    int    `json:"dramaToken"`
	EpisodeToken  int    `json:"episodeToken"`
}

// EpisodeID builds the ownership key for a single episode of a drama.
func EpisodeID(dramaID string, episode int) string {
	return fmt.Sprintf("%s/%d", dramaID, episode)
}

// SurveyQuestion is one question with its ordered answer options.
type SurveyQuestion struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// SurveyResult is one qualitative result bucket. The score range is
// inclusive on both ends.
type SurveyResult struct {
	Label       string  `json:"label"`
	Description string  `json:"description"`
	MinScore    float64 `json:"minScore"`
	MaxScore    float64 `json:"maxScore"`
}

// Survey is a psychometric instrument: questions plus result buckets.
// Immutable once fetched.
type Survey struct {
	ID          string           `json:"_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	SurveyToken int              `json:"surveyToken"`
	Questions   []SurveyQuestion `json:"questions"`
	Results     []SurveyResult   `json:"results"`
}

// PaymentURL is one bank/app redirect entry shown alongside the invoice QR.
type PaymentURL struct {
	Link        string `json:"link"`
	Logo        string `json:"logo"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PaymentInvoice is the presentation payload of a created invoice.
// It is created once per payment session and never mutated; only the
// status is refetched.
type PaymentInvoice struct {
	InvoiceID string       `json:"invoice_id"`
	QRImage   string       `json:"qr_image"`
	URLs      []PaymentURL `json:"urls"`
}

// Invoice status values as reported by the payment gateway.
const (
	InvoicePending = "PENDING"
	InvoicePaid    = "PAID"
)

// PaymentStatus is the polled state of one invoice.
type PaymentStatus struct {
	InvoiceID string `json:"invoice_id"`
	Status    string `json:"status"`
}

// Invoice is the server-side record behind a PaymentInvoice.
type Invoice struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Tokens    int       `json:"tokens"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPlan is one purchasable token bundle.
type TokenPlan struct {
	Name          string `json:"name"`
	Tokens        int    `json:"tokens"`
	TotalPriceMNT int    `json:"totalPriceMNT"`
	Description   string `json:"description"`
}

var purchaseSuccess = map[ContentKind]string{
	KindSurvey:  "Судалгаа амжилттай худалдаж авлаа",
	KindArticle: "Нийтлэл амжилттай худалдаж авлаа",
	KindDrama:   "Драм амжилттай худалдаж авлаа",
	KindEpisode: "Анги амжилттай худалдаж авлаа",
}

var purchaseOwned = map[ContentKind]string{
	KindSurvey:  "Та энэ судалгааг аль хэдийн худалдаж авсан байна",
	KindArticle: "Та энэ нийтлэлийг аль хэдийн худалдаж авсан байна",
	KindDrama:   "Та энэ драмыг аль хэдийн худалдаж авсан байна",
	KindEpisode: "Та энэ ангийг аль хэдийн худалдаж авсан байна",
}

// PurchaseSuccessMessage is the exact server reply that marks a purchase as
// successful for the given kind. Any other reply is a rejection whose text
// is the reason.
func PurchaseSuccessMessage(kind ContentKind) string { return purchaseSuccess[kind] }

// PurchaseOwnedMessage is the server reply for an item the user already owns.
func PurchaseOwnedMessage(kind ContentKind) string { return purchaseOwned[kind] }

// InsufficientTokensMessage is the server reply when the balance cannot
// cover the price.
const InsufficientTokensMessage = "Таны токен хүрэлцэхгүй байна"

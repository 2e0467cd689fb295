package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/closedroom/portal/internal/api"
	"github.com/closedroom/portal/internal/models"
)

// SQLiteStore is the persistent implementation of api.Store. Purchases
// and invoice settlements run inside transactions so a balance deduction
// and its entitlement row are atomic.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func NewStore(db *sql.DB) (api.Store, error) {
	return NewSQLiteStore(db)
}

// DSN builds the connection string for a sqlite file path.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", path)
}

func (s *SQLiteStore) AddUser(u *models.User) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, username, tokens, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET username=excluded.username, tokens=excluded.tokens`,
		u.ID, u.Username, u.Tokens, created.Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	var (
		u       models.User
		created string
	)
	err := s.db.QueryRow(`SELECT id, username, tokens, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Tokens, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t, perr := time.Parse(time.RFC3339, created); perr == nil {
		u.CreatedAt = t
	}
	return &u, nil
}

func (s *SQLiteStore) Entitlements(userID string) (*models.Entitlements, error) {
	u, err := s.GetUser(userID)
	if err != nil {
		return nil, err
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
	rows, err := s.db.Query(`SELECT kind, item_id FROM purchases WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind, itemID string
		if err := rows.Scan(&kind, &itemID); err != nil {
			return nil, err
		}
		switch models.ContentKind(kind) {
		case models.KindArticle:
			ent.PurchasedArticles = append(ent.PurchasedArticles, itemID)
		case models.KindDrama:
			ent.PurchasedDramas = append(ent.PurchasedDramas, itemID)
		case models.KindEpisode:
			ent.PurchasedEpisodes = append(ent.PurchasedEpisodes, itemID)
		case models.KindSurvey:
			ent.PurchasedSurveys = append(ent.PurchasedSurveys, itemID)
		}
	}
	return ent, rows.Err()
}

func (s *SQLiteStore) AddArticle(a *models.Article) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO articles (id, title, description, article_token) VALUES (?, ?, ?, ?)`,
		a.ID, a.Title, a.Description, a.ArticleToken)
	return err
}

func (s *SQLiteStore) GetArticle(id string) (*models.Article, error) {
	var a models.Article
	err := s.db.QueryRow(`SELECT id, title, description, article_token FROM articles WHERE id = ?`, id).
		Scan(&a.ID, &a.Title, &a.Description, &a.ArticleToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) AddDrama(d *models.Drama) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO dramas (id, title, description, total_episodes, free_episodes, drama_token, episode_token)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Description, d.TotalEpisodes, d.FreeEpisodes, d.DramaToken, d.EpisodeToken)
	return err
}

func (s *SQLiteStore) GetDrama(id string) (*models.Drama, error) {
	var d models.Drama
	err := s.db.QueryRow(
		`SELECT id, title, description, total_episodes, free_episodes, drama_token, episode_token
		 FROM dramas WHERE id = ?`, id).
		Scan(&d.ID, &d.Title, &d.Description, &d.TotalEpisodes, &d.FreeEpisodes, &d.DramaToken, &d.EpisodeToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) AddSurvey(sv *models.Survey) error {
	questions, err := json.Marshal(sv.Questions)
	if err != nil {
		return err
	}
	results, err := json.Marshal(sv.Results)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO surveys (id, title, description, survey_token, questions, results)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.Title, sv.Description, sv.SurveyToken, string(questions), string(results))
	return err
}

func (s *SQLiteStore) GetSurvey(id string) (*models.Survey, error) {
	var (
		sv                 models.Survey
		questions, results string
	)
	err := s.db.QueryRow(
		`SELECT id, title, description, survey_token, questions, results FROM surveys WHERE id = ?`, id).
		Scan(&sv.ID, &sv.Title, &sv.Description, &sv.SurveyToken, &questions, &results)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &sv.Questions); err != nil {
		log.Printf("sqlite store: decode survey %s questions: %v", id, err)
	}
	if err := json.Unmarshal([]byte(results), &sv.Results); err != nil {
		log.Printf("sqlite store: decode survey %s results: %v", id, err)
	}
	return &sv, nil
}

func (s *SQLiteStore) GrantPurchase(userID string, kind models.ContentKind, itemID string, price int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var tokens int
	err = tx.QueryRow(`SELECT tokens FROM users WHERE id = ?`, userID).Scan(&tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return api.ErrNotFound
	}
	if err != nil {
		return err
	}

	var one int
	err = tx.QueryRow(`SELECT 1 FROM purchases WHERE user_id = ? AND kind = ? AND item_id = ?`,
		userID, string(kind), itemID).Scan(&one)
	if err == nil {
		return api.ErrAlreadyPurchased
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if tokens < price {
		return api.ErrInsufficientTokens
	}
	if _, err := tx.Exec(`UPDATE users SET tokens = tokens - ? WHERE id = ?`, price, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO purchases (user_id, kind, item_id, price, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, string(kind), itemID, price, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddInvoice(inv *models.Invoice) error {
	created := inv.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO invoices (id, user_id, tokens, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		inv.ID, inv.UserID, inv.Tokens, inv.Status, created.Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) GetInvoice(id string) (*models.Invoice, error) {
	var (
		inv     models.Invoice
		created string
	)
	err := s.db.QueryRow(`SELECT id, user_id, tokens, status, created_at FROM invoices WHERE id = ?`, id).
		Scan(&inv.ID, &inv.UserID, &inv.Tokens, &inv.Status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t, perr := time.Parse(time.RFC3339, created); perr == nil {
		inv.CreatedAt = t
	}
	return &inv, nil
}

func (s *SQLiteStore) SettleInvoice(id string) (*models.Invoice, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var inv models.Invoice
	err = tx.QueryRow(`SELECT id, user_id, tokens, status FROM invoices WHERE id = ?`, id).
		Scan(&inv.ID, &inv.UserID, &inv.Tokens, &inv.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, api.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	if inv.Status == models.InvoicePaid {
		return &inv, false, nil
	}
	if _, err := tx.Exec(`UPDATE invoices SET status = ? WHERE id = ?`, models.InvoicePaid, id); err != nil {
		return nil, false, err
	}
	if _, err := tx.Exec(`UPDATE users SET tokens = tokens + ? WHERE id = ?`, inv.Tokens, inv.UserID); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	inv.Status = models.InvoicePaid
	return &inv, true, nil
}

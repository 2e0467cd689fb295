package db

import (
	"database/sql"
	"fmt"
)

// migrations are executed in order on startup. Each statement is
// individually idempotent (CREATE ... IF NOT EXISTS).
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		tokens     INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	`CREATE TABLE IF NOT EXISTS purchases (
		user_id    TEXT NOT NULL,
		kind       TEXT NOT NULL,
		item_id    TEXT NOT NULL,
		price      INTEGER NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (user_id, kind, item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases(user_id)`,

	`CREATE TABLE IF NOT EXISTS articles (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		article_token INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS dramas (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		total_episodes INTEGER NOT NULL DEFAULT 0,
		free_episodes  INTEGER NOT NULL DEFAULT 0,
		drama_token    INTEGER NOT NULL DEFAULT 0,
		episode_token  INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS surveys (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		survey_token INTEGER NOT NULL DEFAULT 0,
		questions    TEXT NOT NULL DEFAULT '[]',
		results      TEXT NOT NULL DEFAULT '[]'
	)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		tokens     INTEGER NOT NULL,
		status     TEXT NOT NULL DEFAULT 'PENDING',
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id)`,
}

// RunMigrations applies the portal schema.
func RunMigrations(db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

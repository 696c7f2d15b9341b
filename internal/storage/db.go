package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Database drivers registered for the two supported backends.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenConfig holds connection settings for Open.
type OpenConfig struct {
	Driver          string // sqlite or postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens a database connection for the configured driver and verifies it.
func Open(ctx context.Context, cfg OpenConfig) (*sql.DB, error) {
	var driverName string
	switch cfg.Driver {
	case "sqlite":
		driverName = "sqlite3"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// migrations are kept dialect-neutral: types and defaults accepted by both
// SQLite and Postgres.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS clubs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		image_url TEXT NOT NULL DEFAULT '',
		next_event TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		name TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		preference_tags TEXT NOT NULL DEFAULT '[]',
		took_quiz BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_questions (
		id TEXT PRIMARY KEY,
		question_text TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_question_options (
		id TEXT PRIMARY KEY,
		question_id TEXT NOT NULL REFERENCES quiz_questions(id),
		option_text TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_responses (
		user_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		option_id TEXT NOT NULL,
		PRIMARY KEY (user_id, question_id, option_id)
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		user_id TEXT NOT NULL,
		club_id TEXT NOT NULL REFERENCES clubs(id),
		PRIMARY KEY (user_id, club_id)
	)`,
	`CREATE TABLE IF NOT EXISTS club_events (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL REFERENCES clubs(id),
		title TEXT NOT NULL,
		starts_at TIMESTAMP NOT NULL,
		location TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS event_signups (
		event_id TEXT NOT NULL REFERENCES club_events(id),
		user_id TEXT NOT NULL,
		PRIMARY KEY (event_id, user_id)
	)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// DB wraps the sql connection pool
type DB struct {
	*sql.DB
}

// New opens a Postgres connection pool and verifies connectivity
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	wrapped := &DB{DB: db}
	if err := wrapped.migrate(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return wrapped, nil
}

// migrate creates the schema if it does not exist. Statements are idempotent
// so every binary (server, worker, configure) can run them at startup.
func (db *DB) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS agent_assignments (
			id UUID PRIMARY KEY,
			contact_id TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			agent_name TEXT NOT NULL DEFAULT '',
			conversation_history JSONB NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_assignments_phone ON agent_assignments (phone)`,
		`CREATE TABLE IF NOT EXISTS qualifications (
			id UUID PRIMARY KEY,
			contact_id TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			campaign_id TEXT NOT NULL DEFAULT '',
			campaign_name TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT '',
			agent_name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			score INTEGER NOT NULL,
			total_messages INTEGER NOT NULL DEFAULT 0,
			keywords JSONB NOT NULL DEFAULT '[]',
			first_contact_at TIMESTAMPTZ NOT NULL,
			last_message_at TIMESTAMPTZ NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_qualifications_phone ON qualifications (phone)`,
		`CREATE INDEX IF NOT EXISTS idx_qualifications_source ON qualifications (source)`,
		`CREATE TABLE IF NOT EXISTS contact_analytics (
			id UUID PRIMARY KEY,
			contact_id TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL,
			contact_name TEXT NOT NULL DEFAULT '',
			interest_level TEXT NOT NULL,
			interest_score INTEGER NOT NULL,
			interest_reason TEXT NOT NULL DEFAULT '',
			total_messages INTEGER NOT NULL DEFAULT 0,
			inbound_messages INTEGER NOT NULL DEFAULT 0,
			outbound_messages INTEGER NOT NULL DEFAULT 0,
			agent_interactions JSONB NOT NULL DEFAULT '[]',
			first_contact_time TIMESTAMPTZ NOT NULL,
			last_contact_time TIMESTAMPTZ NOT NULL,
			conversation_duration INTEGER NOT NULL DEFAULT 0,
			key_topics JSONB NOT NULL DEFAULT '[]',
			objections JSONB NOT NULL DEFAULT '[]',
			positive_signals JSONB NOT NULL DEFAULT '[]',
			negative_signals JSONB NOT NULL DEFAULT '[]',
			last_analyzed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_analytics_phone ON contact_analytics (phone)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_analytics_level ON contact_analytics (interest_level)`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL,
			provider_id TEXT,
			name TEXT,
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider_id ON users (provider_id)`,
		`CREATE TABLE IF NOT EXISTS cors_config (
			config_key TEXT PRIMARY KEY,
			allowed_origins TEXT NOT NULL,
			allow_credentials BOOLEAN NOT NULL DEFAULT TRUE,
			max_age INTEGER NOT NULL DEFAULT 86400,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ratelimit_config (
			config_key TEXT PRIMARY KEY,
			rate TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS oidc_config (
			id UUID PRIMARY KEY,
			provider TEXT NOT NULL UNIQUE,
			issuer TEXT NOT NULL,
			domain TEXT,
			client_id TEXT NOT NULL,
			client_secret TEXT,
			redirect_uri TEXT,
			jwks_url TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

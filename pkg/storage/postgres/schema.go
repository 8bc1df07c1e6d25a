package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	ConstraintUsersUsername = "users_username_key"
	ConstraintUsersEmail    = "users_email_key"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      VARCHAR(20)  NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		full_name     VARCHAR(100),
		address       TEXT,
		city          VARCHAR(100),
		country       VARCHAR(100),
		latitude      DOUBLE PRECISION,
		longitude     DOUBLE PRECISION,
		role          VARCHAR(10)  NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
		is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
		last_login    TIMESTAMPTZ,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		id                   BIGSERIAL PRIMARY KEY,
		user_id              BIGINT      NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		currency             VARCHAR(3)  NOT NULL DEFAULT 'CNY',
		language             VARCHAR(10) NOT NULL DEFAULT 'zh-CN',
		theme                VARCHAR(10) NOT NULL DEFAULT 'light',
		notification_enabled BOOLEAN     NOT NULL DEFAULT TRUE,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT       NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token       TEXT         NOT NULL UNIQUE,
		device_info VARCHAR(255),
		ip_address  VARCHAR(64),
		expires_at  TIMESTAMPTZ  NOT NULL,
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id            BIGSERIAL PRIMARY KEY,
		user_id       BIGINT      REFERENCES users(id) ON DELETE CASCADE,
		activity_type VARCHAR(50) NOT NULL,
		description   TEXT,
		ip_address    VARCHAR(64),
		user_agent    TEXT,
		metadata      JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_user_created ON activity_logs (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_type ON activity_logs (activity_type)`,
	`CREATE TABLE IF NOT EXISTS expense_categories (
		id         BIGSERIAL PRIMARY KEY,
		name       VARCHAR(50) NOT NULL,
		user_id    BIGINT REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id          BIGSERIAL PRIMARY KEY,
		description TEXT,
		amount      NUMERIC(12, 2) NOT NULL,
		category_id BIGINT REFERENCES expense_categories(id) ON DELETE SET NULL,
		date        DATE        NOT NULL DEFAULT CURRENT_DATE,
		user_id     BIGINT      NOT NULL REFERENCES users(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates every table and index the service needs
func Migrate(ctx context.Context, db *sql.DB) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d failed: %w", i+1, err)
			}
		}
		return nil
	})
}

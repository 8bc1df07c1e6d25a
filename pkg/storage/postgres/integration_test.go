//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("spendwise_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, ConnectionConfig{URL: connStr, ConnectTimeout: 30 * time.Second, IdleTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestIntegration_MigrateIsIdempotent(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var tables int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_name IN ('users', 'user_settings', 'sessions', 'activity_logs', 'expense_categories', 'expenses')
	`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 6, tables)
}

func TestIntegration_UniqueViolation(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))

	insert := `INSERT INTO users (username, email, password_hash) VALUES ($1, $2, 'x')`
	_, err := db.ExecContext(ctx, insert, "alice", "alice@example.com")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "alice2", "alice@example.com")
	constraint, ok := UniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, ConstraintUsersEmail, constraint)
}

func TestIntegration_ActivityCascade(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))

	var userID int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ('bob1', 'bob@example.com', 'x') RETURNING id`,
	).Scan(&userID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO activity_logs (user_id, activity_type) VALUES ($1, 'login')`, userID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	require.NoError(t, err)

	var remaining int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

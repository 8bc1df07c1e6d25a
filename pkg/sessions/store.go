package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/storage/postgres"
)

// Store persists issued tokens in the sessions table
type Store struct {
	db      *sql.DB
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithStatementTimeout bounds every store call
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// NewStore creates a session store
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a session for a freshly issued token and fills in its ID
// and creation time.
func (s *Store) Create(ctx context.Context, session *auth.Session) error {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token, device_info, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		session.UserID, session.Token, session.DeviceInfo, session.IPAddress, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindValid returns the session for token if it has not expired. Expired
// and unknown tokens both yield auth.ErrSessionNotFound.
func (s *Store) FindValid(ctx context.Context, token string) (*auth.Session, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	var (
		session    auth.Session
		deviceInfo sql.NullString
		ipAddress  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, device_info, ip_address, expires_at, created_at
		FROM sessions
		WHERE token = $1 AND expires_at > $2`,
		token, s.now(),
	).Scan(&session.ID, &session.UserID, &session.Token, &deviceInfo, &ipAddress,
		&session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session.DeviceInfo = deviceInfo.String
	session.IPAddress = ipAddress.String
	return &session, nil
}

// DeleteByToken revokes one session. Deleting an unknown token is not an error.
func (s *Store) DeleteByToken(ctx context.Context, token string) error {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every session whose expiry has passed and returns
// the number removed.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

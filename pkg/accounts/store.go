package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/storage/postgres"
)

const userColumns = `id, username, email, password_hash,
	COALESCE(full_name, ''), COALESCE(address, ''), COALESCE(city, ''), COALESCE(country, ''),
	latitude, longitude, role, is_active, last_login, created_at, updated_at`

// Store persists accounts in PostgreSQL
type Store struct {
	db      *sql.DB
	hasher  *auth.PasswordHasher
	timeout time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithStatementTimeout bounds every store call
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// NewStore creates an account store. A nil hasher uses the default bcrypt cost.
func NewStore(db *sql.DB, hasher *auth.PasswordHasher, opts ...Option) *Store {
	if hasher == nil {
		hasher = auth.NewPasswordHasher(auth.DefaultBcryptCost)
	}
	s := &Store{db: db, hasher: hasher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewUser is the input for Create. Password is the raw password; it is
// hashed before it reaches the database.
type NewUser struct {
	Username  string
	Email     string
	Password  string
	FullName  string
	Address   string
	City      string
	Country   string
	Latitude  *float64
	Longitude *float64
	Role      auth.Role
}

// Create inserts a user and its default settings row in one transaction
func (s *Store) Create(ctx context.Context, nu NewUser) (*auth.User, error) {
	if nu.Role == "" {
		nu.Role = auth.RoleUser
	}
	hash, err := s.hasher.Hash(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &auth.User{
		Username:     nu.Username,
		Email:        auth.NormalizeEmail(nu.Email),
		PasswordHash: hash,
		FullName:     nu.FullName,
		Address:      nu.Address,
		City:         nu.City,
		Country:      nu.Country,
		Latitude:     nu.Latitude,
		Longitude:    nu.Longitude,
		Role:         nu.Role,
	}

	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	err = postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := checkAvailable(ctx, tx, user.Username, user.Email); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (
				username, email, password_hash, full_name,
				address, city, country, latitude, longitude, role
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, is_active, created_at, updated_at`,
			user.Username, user.Email, user.PasswordHash, nullString(user.FullName),
			nullString(user.Address), nullString(user.City), nullString(user.Country),
			user.Latitude, user.Longitude, string(user.Role),
		).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(fmt.Errorf("failed to insert user: %w", err))
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO user_settings (user_id) VALUES ($1)`, user.ID); err != nil {
			return fmt.Errorf("failed to create user settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func checkAvailable(ctx context.Context, q postgres.Queryer, username, email string) error {
	var existing string
	err := q.QueryRowContext(ctx,
		`SELECT username FROM users WHERE username = $1 OR LOWER(email) = LOWER($2) LIMIT 1`,
		username, email,
	).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check existing accounts: %w", err)
	case existing == username:
		return ErrDuplicateUsername
	default:
		return ErrDuplicateEmail
	}
}

func mapUniqueViolation(err error) error {
	constraint, ok := postgres.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case postgres.ConstraintUsersUsername:
		return ErrDuplicateUsername
	case postgres.ConstraintUsersEmail:
		return ErrDuplicateEmail
	}
	return err
}

// FindByID loads an account by primary key
func (s *Store) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUserRow(row)
}

// FindByLogin loads an account by username, or by email compared
// case-insensitively.
func (s *Store) FindByLogin(ctx context.Context, identifier string) (*auth.User, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1 OR LOWER(email) = LOWER($1) LIMIT 1",
		strings.TrimSpace(identifier),
	)
	return scanUserRow(row)
}

// UpdateLastLogin stamps the account's last successful login
func (s *Store) UpdateLastLogin(ctx context.Context, id int64) error {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// ProfileUpdate carries the optional profile fields. Nil fields are left
// unchanged. A non-empty NewPassword requires CurrentPassword.
type ProfileUpdate struct {
	Email           *string
	FullName        *string
	Address         *string
	City            *string
	Country         *string
	Latitude        *float64
	Longitude       *float64
	CurrentPassword string
	NewPassword     string
}

// ChangesPassword reports whether the update replaces the password
func (p ProfileUpdate) ChangesPassword() bool {
	return p.NewPassword != ""
}

func (p ProfileUpdate) empty() bool {
	return p.Email == nil && p.FullName == nil && p.Address == nil && p.City == nil &&
		p.Country == nil && p.Latitude == nil && p.Longitude == nil && !p.ChangesPassword()
}

// UpdateProfile applies upd to the account in one transaction. Email
// uniqueness and the current password are checked before any write.
func (s *Store) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*auth.User, error) {
	if upd.empty() {
		return nil, ErrNoChanges
	}

	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	var user *auth.User
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		sets := []string{}
		args := []interface{}{}
		argCount := 1

		set := func(column string, value interface{}) {
			sets = append(sets, fmt.Sprintf("%s = $%d", column, argCount))
			args = append(args, value)
			argCount++
		}

		if upd.Email != nil {
			email := auth.NormalizeEmail(*upd.Email)
			var otherID int64
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM users WHERE LOWER(email) = LOWER($1) AND id != $2`,
				email, userID,
			).Scan(&otherID)
			if err == nil {
				return ErrDuplicateEmail
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check email: %w", err)
			}
			set("email", email)
		}

		if upd.ChangesPassword() {
			if upd.CurrentPassword == "" {
				return ErrCurrentPasswordRequired
			}
			var currentHash string
			err := tx.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&currentHash)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to load password hash: %w", err)
			}
			if !s.hasher.Verify(upd.CurrentPassword, currentHash) {
				return ErrWrongPassword
			}
			newHash, err := s.hasher.Hash(upd.NewPassword)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			set("password_hash", newHash)
		}

		if upd.FullName != nil {
			set("full_name", *upd.FullName)
		}
		if upd.Address != nil {
			set("address", *upd.Address)
		}
		if upd.City != nil {
			set("city", *upd.City)
		}
		if upd.Country != nil {
			set("country", *upd.Country)
		}
		if upd.Latitude != nil {
			set("latitude", *upd.Latitude)
		}
		if upd.Longitude != nil {
			set("longitude", *upd.Longitude)
		}

		query := fmt.Sprintf(
			"UPDATE users SET %s, updated_at = CURRENT_TIMESTAMP WHERE id = $%d RETURNING %s",
			strings.Join(sets, ", "), argCount, userColumns,
		)
		args = append(args, userID)

		updated, err := scanUserRow(tx.QueryRowContext(ctx, query, args...))
		if err != nil {
			return mapUniqueViolation(err)
		}
		user = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the account and everything it owns in one transaction.
// Activity logs follow through the foreign key cascade.
func (s *Store) Delete(ctx context.Context, userID int64) error {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	return postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		owned := []string{
			`DELETE FROM sessions WHERE user_id = $1`,
			`DELETE FROM expenses WHERE user_id = $1`,
			`DELETE FROM expense_categories WHERE user_id = $1`,
			`DELETE FROM user_settings WHERE user_id = $1`,
		}
		for _, stmt := range owned {
			if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
				return fmt.Errorf("failed to delete account data: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(row rowScanner) (*auth.User, error) {
	var (
		user      auth.User
		role      string
		lat, lng  sql.NullFloat64
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FullName, &user.Address, &user.City, &user.Country,
		&lat, &lng, &role, &user.IsActive, &lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.Role = auth.Role(role)
	if lat.Valid {
		user.Latitude = &lat.Float64
	}
	if lng.Valid {
		user.Longitude = &lng.Float64
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

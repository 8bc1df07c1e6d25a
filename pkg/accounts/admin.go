package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/storage/postgres"
)

// UserSummary is one row of the admin user list
type UserSummary struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name,omitempty"`
	Role          auth.Role  `json:"role"`
	IsActive      bool       `json:"is_active"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	City          string     `json:"city,omitempty"`
	Country       string     `json:"country,omitempty"`
	ExpenseCount  int64      `json:"expense_count"`
	TotalExpenses float64    `json:"total_expenses"`
}

// ListFilter selects a page of users. Search matches username, email and
// full name case-insensitively.
type ListFilter struct {
	Search string
	Page   int
	Limit  int
}

// UserPage is a page of the admin user list
type UserPage struct {
	Users      []UserSummary `json:"users"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// StatusChange is the result of SetActive
type StatusChange struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// List returns a page of users with their expense totals, newest first
func (s *Store) List(ctx context.Context, filter ListFilter) (*UserPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	where := " WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if filter.Search != "" {
		where += fmt.Sprintf(
			" AND (u.username ILIKE $%d OR u.email ILIKE $%d OR u.full_name ILIKE $%d)",
			argCount, argCount, argCount,
		)
		args = append(args, "%"+filter.Search+"%")
		argCount++
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users u"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT u.id, u.username, u.email, COALESCE(u.full_name, ''), u.role, u.is_active,
		u.last_login, COALESCE(u.city, ''), COALESCE(u.country, ''),
		COUNT(e.id), COALESCE(SUM(e.amount), 0)
		FROM users u
		LEFT JOIN expenses e ON u.id = e.user_id` + where
	query += fmt.Sprintf(" GROUP BY u.id ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []UserSummary{}
	for rows.Next() {
		var (
			u         UserSummary
			role      string
			lastLogin sql.NullTime
		)
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Email, &u.FullName, &role, &u.IsActive,
			&lastLogin, &u.City, &u.Country, &u.ExpenseCount, &u.TotalExpenses,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user summary: %w", err)
		}
		u.Role = auth.Role(role)
		if lastLogin.Valid {
			u.LastLogin = &lastLogin.Time
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &UserPage{
		Users:      users,
		Total:      total,
		Page:       filter.Page,
		TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
	}, nil
}

// SetActive enables or disables an account. Admin accounts can be enabled
// but never disabled.
func (s *Store) SetActive(ctx context.Context, userID int64, active bool) (*StatusChange, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	var change StatusChange
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var role string
		err := tx.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load user role: %w", err)
		}

		if auth.Role(role) == auth.RoleAdmin && !active {
			return ErrAdminDeactivation
		}

		err = tx.QueryRowContext(ctx, `
			UPDATE users SET is_active = $1, updated_at = CURRENT_TIMESTAMP
			WHERE id = $2
			RETURNING id, username, is_active`,
			active, userID,
		).Scan(&change.ID, &change.Username, &change.IsActive)
		if err != nil {
			return fmt.Errorf("failed to update user status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

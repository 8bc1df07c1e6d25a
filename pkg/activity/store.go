package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/spendwise/pkg/storage/postgres"
)

// Store provides methods for appending and querying activity rows
type Store interface {
	// Insert appends one activity
	Insert(ctx context.Context, rec Record) error

	// Search returns one page of activities visible to caller
	Search(ctx context.Context, filter SearchFilter, caller Caller) (*Page, error)

	// CountByType groups matching activities by type, largest first
	CountByType(ctx context.Context, filter SearchFilter, caller Caller) ([]TypeCount, error)

	// Statistics builds the admin dashboard summary for activity since the given time
	Statistics(ctx context.Context, since time.Time) (*Statistics, error)

	// Recent returns the newest activities across all users
	Recent(ctx context.Context, limit int) ([]*Entry, error)

	// Export returns every matching activity, newest first
	Export(ctx context.Context, filter SearchFilter, caller Caller) ([]*Entry, error)

	// Preview summarizes what Export would return
	Preview(ctx context.Context, filter SearchFilter, caller Caller) (*Preview, error)

	// OlderThan returns every activity created before cutoff
	OlderThan(ctx context.Context, cutoff time.Time) ([]*Entry, error)

	// DeleteOlderThan removes every activity created before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

const entryColumns = `al.id, COALESCE(al.user_id, 0), COALESCE(u.username, ''), COALESCE(u.email, ''),
	al.activity_type, COALESCE(al.description, ''), COALESCE(al.ip_address, ''),
	COALESCE(al.user_agent, ''), al.metadata, al.created_at`

// fromJoined keeps rows whose user no longer resolves; the user columns
// come back empty for them.
const fromJoined = ` FROM activity_logs al LEFT JOIN users u ON al.user_id = u.id`

// PostgresStore implements Store on the activity_logs table
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresStore creates a Store. A zero timeout leaves statements unbounded.
func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

// Insert appends an activity
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	var metadata interface{}
	if rec.Metadata != nil {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = b
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (user_id, activity_type, description, ip_address, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.UserID, string(rec.Type), rec.Description,
		nullString(rec.IPAddress), nullString(rec.UserAgent), metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// where builds the shared WHERE clause. Text search needs the users join.
// Non-admin callers always get their own user_id appended.
func where(filter SearchFilter, caller Caller, withText bool) (string, []interface{}) {
	clause := " WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if filter.StartDate != nil {
		clause += fmt.Sprintf(" AND al.created_at >= $%d", argCount)
		args = append(args, *filter.StartDate)
		argCount++
	}

	if filter.EndDate != nil {
		clause += fmt.Sprintf(" AND al.created_at <= $%d", argCount)
		args = append(args, *filter.EndDate)
		argCount++
	}

	if filter.Type != "" {
		clause += fmt.Sprintf(" AND al.activity_type = $%d", argCount)
		args = append(args, string(filter.Type))
		argCount++
	}

	if withText && filter.Text != "" {
		clause += fmt.Sprintf(" AND (al.description ILIKE $%[1]d OR u.username ILIKE $%[1]d OR u.email ILIKE $%[1]d OR al.ip_address ILIKE $%[1]d)", argCount)
		args = append(args, "%"+filter.Text+"%")
		argCount++
	}

	if !caller.Admin {
		clause += fmt.Sprintf(" AND al.user_id = $%d", argCount)
		args = append(args, caller.UserID)
	}

	return clause, args
}

// Search returns one page of matching activities
func (s *PostgresStore) Search(ctx context.Context, filter SearchFilter, caller Caller) (*Page, error) {
	orderBy, err := filter.orderBy()
	if err != nil {
		return nil, err
	}
	page, limit := filter.pagination()

	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	clause, args := where(filter, caller, true)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+fromJoined+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}

	offset := (page - 1) * limit
	query := "SELECT " + entryColumns + fromJoined + clause +
		fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", orderBy, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	items, err := s.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search activities: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Page{
		Items:      items,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
		HasMore:    int64(offset+len(items)) < total,
	}, nil
}

// CountByType groups matching activities by type
func (s *PostgresStore) CountByType(ctx context.Context, filter SearchFilter, caller Caller) ([]TypeCount, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	clause, args := where(filter, caller, false)
	rows, err := s.db.QueryContext(ctx,
		"SELECT al.activity_type, COUNT(*) AS count FROM activity_logs al"+clause+
			" GROUP BY al.activity_type ORDER BY count DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity types: %w", err)
	}
	defer rows.Close()

	return scanTypeCounts(rows)
}

// Statistics runs the three dashboard queries
func (s *PostgresStore) Statistics(ctx context.Context, since time.Time) (*Statistics, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	stats := &Statistics{
		Daily:       []DailyCount{},
		ActiveUsers: []ActiveUser{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE_TRUNC('day', created_at) AS date, activity_type, COUNT(*) AS count
		FROM activity_logs
		WHERE created_at >= $1
		GROUP BY DATE_TRUNC('day', created_at), activity_type
		ORDER BY date DESC, activity_type`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Date, &d.Type, &d.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats.Daily = append(stats.Daily, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	typeRows, err := s.db.QueryContext(ctx, `
		SELECT activity_type, COUNT(*) AS count
		FROM activity_logs
		GROUP BY activity_type
		ORDER BY count DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get type stats: %w", err)
	}
	defer typeRows.Close()

	if stats.Types, err = scanTypeCounts(typeRows); err != nil {
		return nil, err
	}

	userRows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, COUNT(*) AS activity_count
		FROM activity_logs al
		JOIN users u ON al.user_id = u.id
		WHERE al.created_at >= $1
		GROUP BY u.id, u.username
		ORDER BY activity_count DESC
		LIMIT $2`, since, activeUsersLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get active users: %w", err)
	}
	defer userRows.Close()

	for userRows.Next() {
		var u ActiveUser
		if err := userRows.Scan(&u.ID, &u.Username, &u.ActivityCount); err != nil {
			return nil, fmt.Errorf("failed to scan active user: %w", err)
		}
		stats.ActiveUsers = append(stats.ActiveUsers, u)
	}
	if err := userRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active users: %w", err)
	}

	return stats, nil
}

// Recent returns the newest activities with their usernames
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.queryEntries(ctx,
		"SELECT "+entryColumns+fromJoined+" ORDER BY al.created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activities: %w", err)
	}
	return entries, nil
}

// Export returns all matching activities, newest first
func (s *PostgresStore) Export(ctx context.Context, filter SearchFilter, caller Caller) ([]*Entry, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	clause, args := where(filter, caller, true)
	entries, err := s.queryEntries(ctx,
		"SELECT "+entryColumns+fromJoined+clause+" ORDER BY al.created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to export activities: %w", err)
	}
	return entries, nil
}

// Preview counts what an export with the same filter would contain
func (s *PostgresStore) Preview(ctx context.Context, filter SearchFilter, caller Caller) (*Preview, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	clause, args := where(filter, caller, true)

	var p Preview
	var earliest, latest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT al.user_id), MIN(al.created_at), MAX(al.created_at)"+fromJoined+clause,
		args...,
	).Scan(&p.TotalRecords, &p.UserCount, &earliest, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to preview export: %w", err)
	}
	if earliest.Valid {
		p.Earliest = &earliest.Time
	}
	if latest.Valid {
		p.Latest = &latest.Time
	}
	return &p, nil
}

// OlderThan returns activities created before cutoff, including rows whose
// user no longer resolves
func (s *PostgresStore) OlderThan(ctx context.Context, cutoff time.Time) ([]*Entry, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.queryEntries(ctx,
		"SELECT "+entryColumns+fromJoined+" WHERE al.created_at < $1 ORDER BY al.id", cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load expired activities: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan hard-deletes activities created before cutoff
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activities: %w", err)
	}
	return result.RowsAffected()
}

func (s *PostgresStore) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e := &Entry{}
		var metadataJSON []byte
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Username, &e.Email,
			&e.Type, &e.Description, &e.IPAddress,
			&e.UserAgent, &metadataJSON, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return entries, nil
}

func scanTypeCounts(rows *sql.Rows) ([]TypeCount, error) {
	counts := make([]TypeCount, 0)
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type counts: %w", err)
	}
	return counts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

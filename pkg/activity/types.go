package activity

import (
	"errors"
	"time"

	"github.com/platinummonkey/spendwise/pkg/auth"
)

// Type names what a user did
type Type string

const (
	TypeLogin          Type = "login"
	TypeLogout         Type = "logout"
	TypeProfileUpdate  Type = "profile_update"
	TypePasswordChange Type = "password_change"

	TypeExpenseCreate Type = "expense_create"
	TypeExpenseUpdate Type = "expense_update"
	TypeExpenseDelete Type = "expense_delete"

	TypeCategoryCreate Type = "category_create"
	TypeCategoryUpdate Type = "category_update"
	TypeCategoryDelete Type = "category_delete"

	TypeSettingsUpdate Type = "settings_update"
	TypeExportData     Type = "export_data"
)

// KnownTypes lists every type the service itself records. Writes are not
// restricted to this list.
var KnownTypes = []Type{
	TypeLogin, TypeLogout, TypeProfileUpdate, TypePasswordChange,
	TypeExpenseCreate, TypeExpenseUpdate, TypeExpenseDelete,
	TypeCategoryCreate, TypeCategoryUpdate, TypeCategoryDelete,
	TypeSettingsUpdate, TypeExportData,
}

// Known reports whether t is one of KnownTypes
func (t Type) Known() bool {
	for _, k := range KnownTypes {
		if k == t {
			return true
		}
	}
	return false
}

var (
	// ErrForbidden is returned for admin-only operations called by a plain user
	ErrForbidden = errors.New("admin privileges required")

	// ErrInvalidFilter is returned when a sort column or order is not allowed
	ErrInvalidFilter = errors.New("invalid activity filter")
)

// Record is one activity to append
type Record struct {
	UserID      int64
	Type        Type
	Description string
	IPAddress   string
	UserAgent   string
	Metadata    map[string]interface{}
}

// Entry is a stored activity row joined with its user
type Entry struct {
	ID          int64                  `json:"id"`
	UserID      int64                  `json:"user_id"`
	Username    string                 `json:"username,omitempty"`
	Email       string                 `json:"email,omitempty"`
	Type        Type                   `json:"activity_type"`
	Description string                 `json:"description"`
	IPAddress   string                 `json:"ip_address,omitempty"`
	UserAgent   string                 `json:"user_agent,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Caller identifies who is querying. Non-admin callers only ever see their
// own rows.
type Caller struct {
	UserID int64
	Admin  bool
}

// CallerFrom builds a Caller from an authenticated request context
func CallerFrom(ac *auth.AuthContext) Caller {
	if ac == nil || ac.User == nil {
		return Caller{}
	}
	return Caller{UserID: ac.User.ID, Admin: ac.IsAdmin()}
}

// SearchFilter narrows activity queries. Zero values mean "no constraint".
type SearchFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Type      Type
	Text      string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Page is one page of search results
type Page struct {
	Items      []*Entry `json:"items"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	TotalPages int      `json:"total_pages"`
	HasMore    bool     `json:"has_more"`
}

// TypeCount is the number of rows of one type
type TypeCount struct {
	Type  Type  `json:"activity_type"`
	Count int64 `json:"count"`
}

// DailyCount is the number of rows of one type on one day
type DailyCount struct {
	Date  time.Time `json:"date"`
	Type  Type      `json:"activity_type"`
	Count int64     `json:"count"`
}

// ActiveUser ranks a user by activity volume
type ActiveUser struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	ActivityCount int64  `json:"activity_count"`
}

// Statistics is the dashboard summary. Daily and ActiveUsers cover the last
// 30 days and are only filled for admins.
type Statistics struct {
	Daily       []DailyCount `json:"daily_stats,omitempty"`
	Types       []TypeCount  `json:"type_stats"`
	ActiveUsers []ActiveUser `json:"active_users,omitempty"`
}

// Preview summarizes what an export would contain
type Preview struct {
	TotalRecords int64      `json:"total_records"`
	UserCount    int64      `json:"user_count"`
	Earliest     *time.Time `json:"earliest_date"`
	Latest       *time.Time `json:"latest_date"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	statsWindowDays  = 30
	activeUsersLimit = 10
)

var sortColumns = map[string]string{
	"created_at":    "al.created_at",
	"activity_type": "al.activity_type",
	"ip_address":    "al.ip_address",
	"id":            "al.id",
}

// orderBy resolves the filter's sort to a whitelisted ORDER BY clause
func (f SearchFilter) orderBy() (string, error) {
	column := "al.created_at"
	if f.SortBy != "" {
		c, ok := sortColumns[f.SortBy]
		if !ok {
			return "", ErrInvalidFilter
		}
		column = c
	}

	order := "DESC"
	switch f.SortOrder {
	case "", "desc", "DESC":
	case "asc", "ASC":
		order = "ASC"
	default:
		return "", ErrInvalidFilter
	}
	return column + " " + order, nil
}

func (f SearchFilter) pagination() (page, limit int) {
	page, limit = f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

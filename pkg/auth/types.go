package auth

import "time"

// Role is a user's account-wide role
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User represents a registered account
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name,omitempty"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	Country      string     `json:"country,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session is the persisted record of one issued token
type Session struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Token      string    `json:"-"`
	DeviceInfo string    `json:"device_info,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsValid reports whether the session has not yet expired at now
func (s *Session) IsValid(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// Settings holds per-user display preferences
type Settings struct {
	UserID              int64     `json:"user_id"`
	Currency            string    `json:"currency"`
	Language            string    `json:"language"`
	Theme               string    `json:"theme"`
	NotificationEnabled bool      `json:"notification_enabled"`
	UpdatedAt           time.Time `json:"updated_at"`
}

const (
	DefaultCurrency = "CNY"
	DefaultLanguage = "zh-CN"
	DefaultTheme    = "light"
)

var (
	Currencies = []string{"CNY", "USD", "EUR", "GBP", "JPY"}
	Languages  = []string{"zh-CN", "en-US", "ja-JP"}
	Themes     = []string{"light", "dark", "system"}
)

// DefaultSettings returns the settings every new account starts with
func DefaultSettings(userID int64) Settings {
	return Settings{
		UserID:              userID,
		Currency:            DefaultCurrency,
		Language:            DefaultLanguage,
		Theme:               DefaultTheme,
		NotificationEnabled: true,
	}
}

// AuthContext holds the authenticated identity for one request
type AuthContext struct {
	User    *User
	Token   string
	Session *Session
}

// HasRole checks if the authenticated user holds any of the given roles
func (ac *AuthContext) HasRole(roles ...Role) bool {
	if ac == nil || ac.User == nil {
		return false
	}
	for _, role := range roles {
		if ac.User.Role == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the authenticated user is an admin
func (ac *AuthContext) IsAdmin() bool {
	return ac != nil && ac.User.IsAdmin()
}

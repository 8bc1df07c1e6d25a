package auth

import (
	"regexp"
	"strings"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,20}$`)

	// Deliberately permissive: something@something.tld with no whitespace.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// IsValidUsername reports whether username is 4-20 letters, digits, '_' or '-'
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// IsValidEmail performs a shape check only
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidRole reports whether role is one of the known roles
func IsValidRole(role Role) bool {
	return role == RoleAdmin || role == RoleUser
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsValidCurrency reports whether code is a supported currency
func IsValidCurrency(code string) bool { return contains(Currencies, code) }

// IsValidLanguage reports whether tag is a supported UI language
func IsValidLanguage(tag string) bool { return contains(Languages, tag) }

// IsValidTheme reports whether theme is a supported UI theme
func IsValidTheme(theme string) bool { return contains(Themes, theme) }

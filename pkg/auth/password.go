package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured
const DefaultBcryptCost = 10

// MinPasswordLength is the shortest password that can pass the strength check
const MinPasswordLength = 8

// PasswordHasher hashes and verifies passwords with bcrypt
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost. Costs outside
// bcrypt's accepted range fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted bcrypt hash of password
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. Malformed hashes never match.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return VerifyPassword(password, hash)
}

// VerifyPassword reports whether password matches a bcrypt hash
func VerifyPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// StrengthResult is the outcome of CheckPasswordStrength
type StrengthResult struct {
	IsStrong   bool     `json:"is_strong"`
	Violations []string `json:"violations,omitempty"`
}

const (
	ViolationLength  = "password must be at least 8 characters"
	ViolationUpper   = "password must contain an uppercase letter"
	ViolationLower   = "password must contain a lowercase letter"
	ViolationDigit   = "password must contain a digit"
	ViolationSpecial = "password must contain a special character"
)

// CheckPasswordStrength reports one violation per unmet rule. Any character
// outside ASCII letters and digits counts as special.
func CheckPasswordStrength(password string) StrengthResult {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	var violations []string
	if len([]rune(password)) < MinPasswordLength {
		violations = append(violations, ViolationLength)
	}
	if !hasUpper {
		violations = append(violations, ViolationUpper)
	}
	if !hasLower {
		violations = append(violations, ViolationLower)
	}
	if !hasDigit {
		violations = append(violations, ViolationDigit)
	}
	if !hasSpecial {
		violations = append(violations, ViolationSpecial)
	}

	return StrengthResult{IsStrong: len(violations) == 0, Violations: violations}
}

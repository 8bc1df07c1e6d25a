package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hasher := NewPasswordHasher(4)

	hash, err := hasher.Hash("Abcdef1!")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if !hasher.Verify("Abcdef1!", hash) {
		t.Error("Verify() = false for the original password")
	}
	if hasher.Verify("Abcdef1?", hash) {
		t.Error("Verify() = true for a different password")
	}
}

func TestHashPassword_Salted(t *testing.T) {
	hasher := NewPasswordHasher(4)

	first, err := hasher.Hash("Abcdef1!")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	second, err := hasher.Hash("Abcdef1!")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if first == second {
		t.Error("two hashes of the same password should differ")
	}
	if !VerifyPassword("Abcdef1!", first) || !VerifyPassword("Abcdef1!", second) {
		t.Error("both hashes should verify")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := NewPasswordHasher(4).Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("Hash(\"\") error = %v, want ErrEmptyPassword", err)
	}
}

func TestNewPasswordHasher_CostFallback(t *testing.T) {
	if got := NewPasswordHasher(0).cost; got != DefaultBcryptCost {
		t.Errorf("cost = %d, want %d", got, DefaultBcryptCost)
	}
	if got := NewPasswordHasher(12).cost; got != 12 {
		t.Errorf("cost = %d, want 12", got)
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, hash := range []string{"", "not-a-hash", "$2a$10$short"} {
		if VerifyPassword("Abcdef1!", hash) {
			t.Errorf("VerifyPassword() with hash %q = true", hash)
		}
	}
}

func TestCheckPasswordStrength(t *testing.T) {
	tests := []struct {
		password   string
		wantStrong bool
		wantViol   []string
	}{
		{password: "Abcdef1!", wantStrong: true},
		{password: "abcdefgh", wantViol: []string{ViolationUpper, ViolationDigit, ViolationSpecial}},
		{password: "Ab1!", wantViol: []string{ViolationLength}},
		{password: "ABCDEFG1!", wantViol: []string{ViolationLower}},
		{password: "Abcdefgh1", wantViol: []string{ViolationSpecial}},
		{password: "Abcdéfg1", wantStrong: true},
		{password: "", wantViol: []string{ViolationLength, ViolationUpper, ViolationLower, ViolationDigit, ViolationSpecial}},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			got := CheckPasswordStrength(tt.password)
			if got.IsStrong != tt.wantStrong {
				t.Errorf("IsStrong = %v, want %v (violations: %v)", got.IsStrong, tt.wantStrong, got.Violations)
			}
			if strings.Join(got.Violations, "|") != strings.Join(tt.wantViol, "|") {
				t.Errorf("Violations = %v, want %v", got.Violations, tt.wantViol)
			}
		})
	}
}

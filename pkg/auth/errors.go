package auth

import "errors"

var (
	// ErrEmptyPassword is returned when hashing an empty password
	ErrEmptyPassword = errors.New("password must not be empty")

	// ErrInvalidToken covers every token verification failure: bad
	// signature, malformed input, wrong algorithm or expiry.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrSessionNotFound is returned by session lookups when no unexpired
	// session exists for a token
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserNotFound is returned when no account matches a lookup
	ErrUserNotFound = errors.New("user not found")
)

package accounts

import (
	"errors"

	"github.com/platinummonkey/spendwise/pkg/auth"
)

var (
	// ErrNotFound is returned when no account matches the lookup. It is
	// auth.ErrUserNotFound so callers that only import pkg/auth can match it.
	ErrNotFound = auth.ErrUserNotFound

	// ErrDuplicateUsername is returned when the username is already registered
	ErrDuplicateUsername = errors.New("username already registered")

	// ErrDuplicateEmail is returned when the email is already registered
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrAdminDeactivation is returned when deactivating an admin account
	ErrAdminDeactivation = errors.New("admin accounts cannot be deactivated")

	// ErrCurrentPasswordRequired is returned when a password change omits the current password
	ErrCurrentPasswordRequired = errors.New("current password is required")

	// ErrWrongPassword is returned when the supplied current password does not match
	ErrWrongPassword = errors.New("current password is incorrect")

	// ErrNoChanges is returned when a profile update carries no fields
	ErrNoChanges = errors.New("no fields to update")
)

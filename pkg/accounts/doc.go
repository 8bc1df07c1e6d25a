// Package accounts is the credential store: users, their settings and the
// admin-only account views.
//
// # Overview
//
// Every multi-statement mutation runs in a single transaction through
// postgres.WithTx, so a failure part way through leaves no partial rows:
//
//   - Create inserts the user and its default settings row
//   - UpdateProfile checks email uniqueness and the current password before writing
//   - SetActive refuses to deactivate an admin
//   - Delete removes sessions, expenses, categories, settings and the user
//
// Duplicate usernames and emails are reported as ErrDuplicateUsername and
// ErrDuplicateEmail, both from the pre-insert check and from the unique
// constraints when two registrations race.
//
// # Usage Example
//
//	store := accounts.NewStore(db, auth.NewPasswordHasher(cfg.Auth.BcryptCost))
//	user, err := store.Create(ctx, accounts.NewUser{
//		Username: "alice",
//		Email:    "alice@example.com",
//		Password: "Str0ng!pass",
//	})
//	if errors.Is(err, accounts.ErrDuplicateEmail) { ... }
//
// Emails are stored lower-cased and matched case-insensitively at login.
package accounts

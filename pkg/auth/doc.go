// Package auth holds the credential and token primitives of spendwise.
//
// # Passwords
//
// Passwords are hashed with bcrypt at a configurable cost and checked
// against a strength policy before they are accepted:
//
//	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
//	if res := auth.CheckPasswordStrength(pw); !res.IsStrong {
//		// res.Violations lists each unmet rule
//	}
//	hash, err := hasher.Hash(pw)
//
// # Tokens
//
// TokenService issues HS256 JWTs carrying user_id, username, email and role.
// Verify collapses every failure into ErrInvalidToken:
//
//	tokens, _ := auth.NewTokenService(secret, 7*24*time.Hour)
//	token, expiresAt, err := tokens.Issue(user)
//	claims, err := tokens.Verify(token)
//
// A valid signature is not enough to authenticate a request: the middleware
// package also requires an unexpired session row and an active user.
//
// # Login Throttling
//
// AttemptTracker limits attempts per identifier (5 per 15 minutes by
// default). The window starts at the first attempt of a streak and a
// successful login clears it. MemoryAttemptTracker is bounded by an LRU;
// RedisAttemptTracker runs the same algorithm as a Lua script so several
// instances share one count.
//
// # Request Identity
//
// The authentication middleware stores an *AuthContext with the user, raw
// token and session:
//
//	ac, ok := auth.FromContext(r.Context())
//	if ok && ac.IsAdmin() { ... }
package auth

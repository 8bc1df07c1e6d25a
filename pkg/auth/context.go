package auth

import (
	"context"

	"github.com/platinummonkey/spendwise/pkg/contextkeys"
)

// NewContext returns a copy of ctx carrying ac and its user ID
func NewContext(ctx context.Context, ac *AuthContext) context.Context {
	ctx = contextkeys.WithAuth(ctx, ac)
	if ac != nil && ac.User != nil {
		ctx = contextkeys.WithUserID(ctx, ac.User.ID)
	}
	return ctx
}

// FromContext returns the authenticated identity, if any
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	if !ok || ac == nil || ac.User == nil {
		return nil, false
	}
	return ac, true
}

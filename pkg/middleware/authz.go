package middleware

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/httputil"
	"github.com/platinummonkey/spendwise/pkg/observability"
)

// Resource types registered by NewOwnerRegistry
const (
	ResourceExpense  = "expense"
	ResourceCategory = "category"
)

var (
	// ErrUnknownResource is returned for a resource type with no owner query
	ErrUnknownResource = errors.New("unknown resource type")

	// ErrResourceNotFound is returned when the resource row does not exist
	ErrResourceNotFound = errors.New("resource not found")
)

// OwnerLookup resolves the owning user of a resource
type OwnerLookup interface {
	// Owner returns the owner's user ID, or 0 for rows no user owns
	Owner(ctx context.Context, resourceType string, id int64) (int64, error)
}

// OwnerRegistry maps resource types to owner queries. Each query takes the
// resource ID as $1 and selects a single nullable user_id column.
type OwnerRegistry struct {
	db      *sql.DB
	mu      sync.RWMutex
	queries map[string]string
}

// NewOwnerRegistry creates a registry with expense and category lookups
func NewOwnerRegistry(db *sql.DB) *OwnerRegistry {
	reg := &OwnerRegistry{
		db:      db,
		queries: make(map[string]string),
	}
	reg.Register(ResourceExpense, `SELECT user_id FROM expenses WHERE id = $1`)
	reg.Register(ResourceCategory, `SELECT user_id FROM expense_categories WHERE id = $1`)
	return reg
}

// Register adds or replaces the owner query for resourceType
func (o *OwnerRegistry) Register(resourceType, query string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries[resourceType] = query
}

// Known reports whether resourceType has an owner query
func (o *OwnerRegistry) Known(resourceType string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.queries[resourceType]
	return ok
}

// Owner implements OwnerLookup
func (o *OwnerRegistry) Owner(ctx context.Context, resourceType string, id int64) (int64, error) {
	o.mu.RLock()
	query, ok := o.queries[resourceType]
	o.mu.RUnlock()
	if !ok {
		return 0, ErrUnknownResource
	}

	var owner sql.NullInt64
	err := o.db.QueryRowContext(ctx, query, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrResourceNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up %s owner: %w", resourceType, err)
	}
	return owner.Int64, nil
}

// RequireRole creates middleware that admits only users holding one of roles
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, MsgAuthRequired)
				return
			}

			if !authCtx.HasRole(roles...) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnership creates middleware that admits the owner of the resource
// named by the idParam route variable, or any admin. Absent resources are
// 404 for everyone.
func RequireOwnership(lookup OwnerLookup, resourceType, idParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, MsgAuthRequired)
				return
			}

			id, err := httputil.ParsePathInt64(r, idParam)
			if err != nil {
				httputil.WriteBadRequest(w, "invalid resource id")
				return
			}

			owner, err := lookup.Owner(r.Context(), resourceType, id)
			switch {
			case errors.Is(err, ErrUnknownResource):
				httputil.WriteBadRequest(w, "invalid resource type")
				return
			case errors.Is(err, ErrResourceNotFound):
				httputil.WriteNotFoundError(w, "resource not found")
				return
			case err != nil:
				observability.FromContext(r.Context()).
					WithFields(map[string]interface{}{"resource_type": resourceType, "resource_id": id}).
					WithError(err).
					Error("ownership check failed")
				httputil.WriteInternalError(w, "ownership check failed", err)
				return
			}

			if owner != authCtx.User.ID && !authCtx.IsAdmin() {
				httputil.WriteForbidden(w, "you do not have access to this resource")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

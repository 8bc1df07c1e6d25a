package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spendwise/pkg/auth"
)

var (
	userA = &auth.User{ID: 1, Username: "usera", Role: auth.RoleUser, IsActive: true}
	userB = &auth.User{ID: 2, Username: "userb", Role: auth.RoleUser, IsActive: true}
	admin = &auth.User{ID: 3, Username: "root", Role: auth.RoleAdmin, IsActive: true}
)

func requestAs(user *auth.User, vars map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/expenses/1", nil)
	if user != nil {
		req = req.WithContext(auth.NewContext(req.Context(), &auth.AuthContext{User: user}))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin)(http.HandlerFunc(okHandler))

	tests := []struct {
		name string
		user *auth.User
		want int
	}{
		{"unauthenticated", nil, http.StatusUnauthorized},
		{"plain user", userA, http.StatusForbidden},
		{"admin", admin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestAs(tt.user, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("any listed role passes", func(t *testing.T) {
		h := RequireRole(auth.RoleAdmin, auth.RoleUser)(http.HandlerFunc(okHandler))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestAs(userA, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type staticOwners map[int64]int64

func (s staticOwners) Owner(_ context.Context, resourceType string, id int64) (int64, error) {
	if resourceType != ResourceExpense {
		return 0, ErrUnknownResource
	}
	owner, ok := s[id]
	if !ok {
		return 0, ErrResourceNotFound
	}
	return owner, nil
}

func TestRequireOwnership(t *testing.T) {
	// expense 1 belongs to user A, expense 99 does not exist
	owners := staticOwners{1: userA.ID}

	tests := []struct {
		name         string
		resourceType string
		user         *auth.User
		id           string
		want         int
	}{
		{"unauthenticated", ResourceExpense, nil, "1", http.StatusUnauthorized},
		{"owner", ResourceExpense, userA, "1", http.StatusOK},
		{"other user", ResourceExpense, userB, "1", http.StatusForbidden},
		{"admin", ResourceExpense, admin, "1", http.StatusOK},
		{"absent for owner", ResourceExpense, userA, "99", http.StatusNotFound},
		{"absent for admin", ResourceExpense, admin, "99", http.StatusNotFound},
		{"malformed id", ResourceExpense, userA, "abc", http.StatusBadRequest},
		{"unknown resource type", "budget", userA, "1", http.StatusBadRequest},
		{"unknown type checks auth first", "budget", nil, "1", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireOwnership(owners, tt.resourceType, "id")(http.HandlerFunc(okHandler))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestAs(tt.user, map[string]string{"id": tt.id}))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

type failingOwners struct{}

func (failingOwners) Owner(context.Context, string, int64) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestRequireOwnership_LookupError(t *testing.T) {
	handler := RequireOwnership(failingOwners{}, ResourceExpense, "id")(http.HandlerFunc(okHandler))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(userA, map[string]string{"id": "1"}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOwnerRegistry_Owner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := NewOwnerRegistry(db)

	t.Run("expense owner", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM expenses WHERE id").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(2)))

		owner, err := reg.Owner(context.Background(), ResourceExpense, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(2), owner)
	})

	t.Run("shared category has no owner", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM expense_categories WHERE id").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(nil))

		owner, err := reg.Owner(context.Background(), ResourceCategory, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), owner)
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM expenses WHERE id").
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

		_, err := reg.Owner(context.Background(), ResourceExpense, 404)
		assert.ErrorIs(t, err, ErrResourceNotFound)
	})

	t.Run("unregistered type", func(t *testing.T) {
		assert.False(t, reg.Known("budget"))
		_, err := reg.Owner(context.Background(), "budget", 1)
		assert.ErrorIs(t, err, ErrUnknownResource)
	})

	t.Run("registered type", func(t *testing.T) {
		reg.Register("budget", `SELECT user_id FROM budgets WHERE id = $1`)
		assert.True(t, reg.Known("budget"))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

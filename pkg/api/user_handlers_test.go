package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spendwise/pkg/accounts"
	"github.com/platinummonkey/spendwise/pkg/activity"
	"github.com/platinummonkey/spendwise/pkg/auth"
)

func TestUpdateProfile(t *testing.T) {
	t.Run("success - records profile_update", func(t *testing.T) {
		env := newTestEnv(t)
		env.accounts.add(t, "alice", auth.RoleUser, true)
		token := env.login(t, "alice", testPassword)

		w := env.do(http.MethodPut, "/api/users/profile", token, `{"full_name":"Alice L."}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var user auth.User
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &user))
		assert.Equal(t, "Alice L.", user.FullName)

		last := env.activity.records[len(env.activity.records)-1]
		assert.Equal(t, activity.TypeProfileUpdate, last.Type)
		assert.Equal(t, []string{"full_name"}, last.Metadata["updated_fields"])
		assert.Equal(t, false, last.Metadata["has_password_change"])
	})

	t.Run("success - password change records password_change", func(t *testing.T) {
		env := newTestEnv(t)
		env.accounts.add(t, "alice", auth.RoleUser, true)
		token := env.login(t, "alice", testPassword)

		body := fmt.Sprintf(`{"current_password":%q,"new_password":"N3w!Passw0rd"}`, testPassword)
		w := env.do(http.MethodPut, "/api/users/profile", token, body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		last := env.activity.records[len(env.activity.records)-1]
		assert.Equal(t, activity.TypePasswordChange, last.Type)
		assert.Equal(t, true, last.Metadata["has_password_change"])
	})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"wrong current password", `{"current_password":"nope","new_password":"N3w!Passw0rd"}`, accounts.ErrWrongPassword.Error()},
		{"missing current password", `{"new_password":"N3w!Passw0rd"}`, accounts.ErrCurrentPasswordRequired.Error()},
		{"weak new password", `{"current_password":"x","new_password":"short"}`, ""},
		{"invalid email", `{"email":"nope"}`, MsgInvalidEmail},
	}
	for _, tt := range tests {
		t.Run("error - "+tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.accounts.add(t, "alice", auth.RoleUser, true)
			token := env.login(t, "alice", testPassword)

			w := env.do(http.MethodPut, "/api/users/profile", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			if tt.want != "" {
				assert.Equal(t, tt.want, decode(t, w).Error)
			}
			assert.Equal(t, []activity.Type{activity.TypeLogin}, env.activity.types())
		})
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.add(t, "alice", auth.RoleUser, true)
	token := env.login(t, "alice", testPassword)

	w := env.do(http.MethodGet, "/api/users/settings", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var settings auth.Settings
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &settings))
	assert.Equal(t, auth.DefaultLanguage, settings.Language)

	w = env.do(http.MethodPut, "/api/users/settings", token, `{"currency":"USD","theme":"dark"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &settings))
	assert.Equal(t, "USD", settings.Currency)
	assert.Equal(t, "dark", settings.Theme)

	last := env.activity.records[len(env.activity.records)-1]
	assert.Equal(t, activity.TypeSettingsUpdate, last.Type)
	assert.Equal(t, []string{"currency", "theme"}, last.Metadata["updated_fields"])

	w = env.do(http.MethodPut, "/api/users/settings", token, `{"currency":"BTC"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	user := env.accounts.add(t, "alice", auth.RoleUser, true)
	token := env.login(t, "alice", testPassword)

	w := env.do(http.MethodDelete, "/api/users/account", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{user.ID}, env.accounts.deleted)

	w = env.do(http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminUserRoutes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.accounts.add(t, "rootadmin", auth.RoleAdmin, true)
	user := env.accounts.add(t, "alice", auth.RoleUser, true)
	adminToken := env.login(t, "rootadmin", testPassword)
	userToken := env.login(t, "alice", testPassword)

	t.Run("list forbidden for users", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/users/list", userToken, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("list with search", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/users/list?search=ali&page=1&limit=5", adminToken, "")
		require.Equal(t, http.StatusOK, w.Code)
		var page accounts.UserPage
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
		require.Len(t, page.Users, 1)
		assert.Equal(t, "alice", page.Users[0].Username)
	})

	t.Run("deactivate user", func(t *testing.T) {
		w := env.do(http.MethodPut, fmt.Sprintf("/api/users/%d/status", user.ID), adminToken, `{"is_active":false}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.False(t, user.IsActive)

		w = env.do(http.MethodGet, "/api/auth/me", userToken, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "existing sessions stop working")
	})

	t.Run("admin cannot be deactivated", func(t *testing.T) {
		w := env.do(http.MethodPut, fmt.Sprintf("/api/users/%d/status", admin.ID), adminToken, `{"is_active":false}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.True(t, admin.IsActive)
	})

	t.Run("unknown user", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/users/999/status", adminToken, `{"is_active":true}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing flag", func(t *testing.T) {
		w := env.do(http.MethodPut, fmt.Sprintf("/api/users/%d/status", user.ID), adminToken, `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

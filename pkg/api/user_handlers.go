package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/spendwise/pkg/accounts"
	"github.com/platinummonkey/spendwise/pkg/activity"
	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/httputil"
	"github.com/platinummonkey/spendwise/pkg/middleware"
	"github.com/platinummonkey/spendwise/pkg/observability"
)

// UserHandlers serves profile, settings and admin account management
type UserHandlers struct {
	accounts AccountStore
	recorder activity.Recorder
}

// NewUserHandlers creates user handlers. A nil recorder falls back to the
// recorder carried by the request context.
func NewUserHandlers(accountStore AccountStore, recorder activity.Recorder) *UserHandlers {
	return &UserHandlers{accounts: accountStore, recorder: recorder}
}

// RegisterRoutes registers user routes on an authenticated router
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/profile", h.updateProfile).Methods(http.MethodPut)
	router.HandleFunc("/users/settings", h.getSettings).Methods(http.MethodGet)
	router.HandleFunc("/users/settings", h.updateSettings).Methods(http.MethodPut)
	router.HandleFunc("/users/account", h.deleteAccount).Methods(http.MethodDelete)

	admin := middleware.RequireRole(auth.RoleAdmin)
	router.Handle("/users/list", admin(http.HandlerFunc(h.listUsers))).Methods(http.MethodGet)
	router.Handle("/users/{userId}/status", admin(http.HandlerFunc(h.setStatus))).Methods(http.MethodPut)
}

func (h *UserHandlers) record(r *http.Request, rec activity.Record) {
	if h.recorder != nil {
		h.recorder.Record(r.Context(), rec)
		return
	}
	activity.FromContext(r.Context()).Record(r.Context(), rec)
}

// currentUser writes a 401 and returns nil when the request is unauthenticated
func currentUser(w http.ResponseWriter, r *http.Request) *auth.User {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		httputil.WriteUnauthorized(w, middleware.MsgAuthRequired)
		return nil
	}
	return authCtx.User
}

type profileRequest struct {
	Email           *string  `json:"email"`
	FullName        *string  `json:"full_name"`
	Address         *string  `json:"address"`
	City            *string  `json:"city"`
	Country         *string  `json:"country"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	CurrentPassword string   `json:"current_password"`
	NewPassword     string   `json:"new_password"`
}

func (p profileRequest) fields() []string {
	var fields []string
	add := func(present bool, name string) {
		if present {
			fields = append(fields, name)
		}
	}
	add(p.Email != nil, "email")
	add(p.FullName != nil, "full_name")
	add(p.Address != nil, "address")
	add(p.City != nil, "city")
	add(p.Country != nil, "country")
	add(p.Latitude != nil, "latitude")
	add(p.Longitude != nil, "longitude")
	add(p.NewPassword != "", "new_password")
	return fields
}

// updateProfile handles PUT /users/profile
func (h *UserHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}

	var req profileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email != nil && !auth.IsValidEmail(*req.Email) {
		httputil.WriteValidationError(w, MsgInvalidEmail)
		return
	}
	if req.NewPassword != "" {
		if strength := auth.CheckPasswordStrength(req.NewPassword); !strength.IsStrong {
			httputil.WriteValidationError(w, strings.Join(strength.Violations, "; "))
			return
		}
	}

	upd := accounts.ProfileUpdate{
		Email:           req.Email,
		FullName:        req.FullName,
		Address:         req.Address,
		City:            req.City,
		Country:         req.Country,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}
	updated, err := h.accounts.UpdateProfile(r.Context(), user.ID, upd)
	switch {
	case errors.Is(err, accounts.ErrNoChanges),
		errors.Is(err, accounts.ErrDuplicateEmail),
		errors.Is(err, accounts.ErrCurrentPasswordRequired),
		errors.Is(err, accounts.ErrWrongPassword):
		httputil.WriteValidationError(w, err.Error())
		return
	case errors.Is(err, accounts.ErrNotFound):
		httputil.WriteNotFoundError(w, "user not found")
		return
	case err != nil:
		httputil.LogAndWriteInternalError(w, r, "failed to update profile", err)
		return
	}

	rec := activity.RequestRecord(r, user.ID, activity.TypeProfileUpdate, "updated profile")
	if upd.ChangesPassword() {
		rec = activity.RequestRecord(r, user.ID, activity.TypePasswordChange, "changed password")
	}
	rec.Metadata = map[string]interface{}{
		"updated_fields":      req.fields(),
		"has_password_change": upd.ChangesPassword(),
	}
	h.record(r, rec)

	httputil.WriteSuccessMessage(w, "profile updated", updated)
}

// getSettings handles GET /users/settings
func (h *UserHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}

	settings, err := h.accounts.GetSettings(r.Context(), user.ID)
	if err != nil {
		httputil.LogAndWriteInternalError(w, r, "failed to load settings", err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// updateSettings handles PUT /users/settings
func (h *UserHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}

	var upd accounts.SettingsUpdate
	if !httputil.ParseJSONOrError(w, r, &upd) {
		return
	}
	if err := upd.Validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	settings, err := h.accounts.UpdateSettings(r.Context(), user.ID, upd)
	if err != nil {
		httputil.LogAndWriteInternalError(w, r, "failed to update settings", err)
		return
	}

	rec := activity.RequestRecord(r, user.ID, activity.TypeSettingsUpdate, "updated settings")
	rec.Metadata = map[string]interface{}{"updated_fields": upd.Changes()}
	h.record(r, rec)

	httputil.WriteSuccessMessage(w, "settings updated", settings)
}

// deleteAccount handles DELETE /users/account. Everything the caller owns
// goes in the same transaction.
func (h *UserHandlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}

	err := h.accounts.Delete(r.Context(), user.ID)
	if errors.Is(err, accounts.ErrNotFound) {
		httputil.WriteNotFoundError(w, "user not found")
		return
	}
	if err != nil {
		httputil.LogAndWriteInternalError(w, r, "failed to delete account", err)
		return
	}

	observability.FromContext(r.Context()).
		WithField("user_id", user.ID).
		Info("account deleted")
	httputil.WriteSuccessMessage(w, "account deleted", nil)
}

// listUsers handles GET /users/list
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httputil.ParsePagination(r, 10, 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.accounts.List(r.Context(), accounts.ListFilter{
		Search: strings.TrimSpace(httputil.ParseQueryString(r, "search", "")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		httputil.LogAndWriteInternalError(w, r, "failed to list users", err)
		return
	}
	httputil.WriteSuccess(w, result)
}

type statusRequest struct {
	IsActive *bool `json:"is_active"`
}

// setStatus handles PUT /users/{userId}/status
func (h *UserHandlers) setStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	var req statusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		httputil.WriteValidationError(w, "is_active is required")
		return
	}

	change, err := h.accounts.SetActive(r.Context(), userID, *req.IsActive)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		httputil.WriteNotFoundError(w, "user not found")
		return
	case errors.Is(err, accounts.ErrAdminDeactivation):
		httputil.WriteForbidden(w, "cannot deactivate admin")
		return
	case err != nil:
		httputil.LogAndWriteInternalError(w, r, "failed to update user status", err)
		return
	}

	observability.FromContext(r.Context()).
		WithFields(map[string]interface{}{"user_id": change.ID, "is_active": change.IsActive}).
		Info("user status changed")
	httputil.WriteSuccess(w, change)
}

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/spendwise/pkg/accounts"
	"github.com/platinummonkey/spendwise/pkg/activity"
	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/httputil"
	"github.com/platinummonkey/spendwise/pkg/middleware"
	"github.com/platinummonkey/spendwise/pkg/observability"
)

// Messages returned by the auth endpoints
const (
	MsgMissingFields      = "username, email, password and password_confirm are required"
	MsgPasswordMismatch   = "passwords do not match"
	MsgInvalidUsername    = "username must be 4-20 characters of letters, digits, underscore or hyphen"
	MsgInvalidEmail       = "invalid email address"
	MsgBadCredentials     = "invalid username or password"
	MsgAccountDisabled    = "account is disabled"
	MsgTooManyAttempts    = "too many login attempts, please try again later"
	MsgMissingCredentials = "username and password are required"
)

// AuthHandlers handles registration, login, logout and identity lookups
type AuthHandlers struct {
	accounts AccountStore
	sessions SessionStore
	tokens   *auth.TokenService
	hasher   *auth.PasswordHasher
	attempts auth.AttemptTracker
	recorder activity.Recorder
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewAuthHandlers creates a new auth handlers instance. recorder and metrics may be nil.
func NewAuthHandlers(
	accountStore AccountStore,
	sessionStore SessionStore,
	tokens *auth.TokenService,
	hasher *auth.PasswordHasher,
	attempts auth.AttemptTracker,
	recorder activity.Recorder,
	metrics *observability.Metrics,
) *AuthHandlers {
	if recorder == nil {
		recorder = activity.NoopRecorder{}
	}
	return &AuthHandlers{
		accounts: accountStore,
		sessions: sessionStore,
		tokens:   tokens,
		hasher:   hasher,
		attempts: attempts,
		recorder: recorder,
		metrics:  metrics,
		now:      time.Now,
	}
}

// RegisterRoutes registers the auth routes. protect wraps the routes that
// need an authenticated caller.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, protect func(http.Handler) http.Handler) {
	router.HandleFunc("/register", h.register).Methods(http.MethodPost)
	router.HandleFunc("/login", h.login).Methods(http.MethodPost)
	router.Handle("/logout", protect(http.HandlerFunc(h.logout))).Methods(http.MethodPost)
	router.Handle("/me", protect(http.HandlerFunc(h.me))).Methods(http.MethodGet)
}

type registerRequest struct {
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"password_confirm"`
	FullName        string   `json:"full_name"`
	Address         string   `json:"address"`
	City            string   `json:"city"`
	Country         string   `json:"country"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
}

// validate returns the first rule the request breaks, or ""
func (req *registerRequest) validate() string {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	switch {
	case req.Username == "" || req.Email == "" || req.Password == "" || req.PasswordConfirm == "":
		return MsgMissingFields
	case req.Password != req.PasswordConfirm:
		return MsgPasswordMismatch
	case !auth.IsValidUsername(req.Username):
		return MsgInvalidUsername
	case !auth.IsValidEmail(req.Email):
		return MsgInvalidEmail
	}
	if strength := auth.CheckPasswordStrength(req.Password); !strength.IsStrong {
		return strings.Join(strength.Violations, "; ")
	}
	return ""
}

// userSummary is the public view of an account returned by auth endpoints
type userSummary struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name,omitempty"`
	Role     auth.Role `json:"role"`
}

func summarize(u *auth.User) userSummary {
	return userSummary{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

// register handles POST /auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		httputil.WriteValidationError(w, msg)
		return
	}

	user, err := h.accounts.Create(r.Context(), accounts.NewUser{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		Address:   req.Address,
		City:      req.City,
		Country:   req.Country,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Role:      auth.RoleUser,
	})
	switch {
	case errors.Is(err, accounts.ErrDuplicateUsername), errors.Is(err, accounts.ErrDuplicateEmail):
		httputil.WriteValidationError(w, err.Error())
		return
	case err != nil:
		httputil.LogAndWriteInternalError(w, r, "registration failed", err)
		return
	}

	observability.FromContext(r.Context()).
		WithField("user_id", user.ID).
		Info("user registered")

	httputil.WriteJSON(w, http.StatusCreated, httputil.Envelope{
		Success: true,
		Data:    summarize(user),
		Message: "registration successful",
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      userSummary    `json:"user"`
	Settings  *auth.Settings `json:"settings"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	ExpiresIn int64          `json:"expires_in"`
}

// login handles POST /auth/login. The attempt is counted before the
// credentials are checked, so a locked identifier is refused even with the
// right password.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	identifier := strings.TrimSpace(req.Username)
	if identifier == "" || req.Password == "" {
		httputil.WriteValidationError(w, MsgMissingCredentials)
		return
	}

	ctx := r.Context()
	logger := observability.FromContext(ctx).WithField("identifier", identifier)

	allowed, err := h.attempts.RecordAttempt(ctx, strings.ToLower(identifier))
	if err != nil {
		httputil.LogAndWriteInternalError(w, r, "login failed", err)
		return
	}
	if !allowed {
		h.countLogin("throttled")
		logger.Warn("login throttled")
		httputil.WriteTooManyRequests(w, MsgTooManyAttempts)
		return
	}

	user, err := h.accounts.FindByLogin(ctx, identifier)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		h.rejectCredentials(w, r, identifier)
		return
	case err != nil:
		httputil.LogAndWriteInternalError(w, r, "login failed", err)
		return
	}
	if !h.hasher.Verify(req.Password, user.PasswordHash) {
		h.rejectCredentials(w, r, identifier)
		return
	}
	if !user.IsActive {
		h.countLogin("disabled")
		httputil.WriteUnauthorized(w, MsgAccountDisabled)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		httputil.LogAndWriteInternalError(w, r, "login failed", err)
		return
	}

	deviceInfo := auth.ParseUserAgent(r.UserAgent())
	session := &auth.Session{
		UserID:     user.ID,
		Token:      token,
		DeviceInfo: deviceInfo,
		IPAddress:  httputil.ClientIP(r),
		ExpiresAt:  expiresAt,
	}
	if err := h.sessions.Create(ctx, session); err != nil {
		httputil.LogAndWriteInternalError(w, r, "login failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.SessionsIssued.Inc()
	}

	if err := h.accounts.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.WithError(err).Warn("failed to stamp last login")
	}

	settings, err := h.accounts.GetSettings(ctx, user.ID)
	if err != nil {
		httputil.LogAndWriteInternalError(w, r, "login failed", err)
		return
	}

	if err := h.attempts.ClearAttempts(ctx, strings.ToLower(identifier)); err != nil {
		logger.WithError(err).Warn("failed to clear login attempts")
	}
	h.countLogin("success")

	rec := activity.RequestRecord(r, user.ID, activity.TypeLogin, "user logged in")
	rec.Metadata = map[string]interface{}{
		"device_info": deviceInfo,
		"login_time":  h.now().UTC().Format(time.RFC3339),
	}
	h.recorder.Record(ctx, rec)

	httputil.WriteSuccessMessage(w, "login successful", loginResponse{
		User:      summarize(user),
		Settings:  settings,
		Token:     token,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(h.tokens.TTL() / time.Second),
	})
}

type credentialsRejection struct {
	RemainingAttempts int `json:"remaining_attempts"`
}

// rejectCredentials writes the 401 for an unknown user or a wrong password.
// Both cases report the same body so the response does not reveal which
// usernames exist.
func (h *AuthHandlers) rejectCredentials(w http.ResponseWriter, r *http.Request, identifier string) {
	h.countLogin("bad_credentials")

	body := httputil.Envelope{Success: false, Error: MsgBadCredentials}
	remaining, err := h.attempts.Remaining(r.Context(), strings.ToLower(identifier))
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to read remaining login attempts")
	} else {
		body.Data = credentialsRejection{RemainingAttempts: remaining}
	}
	httputil.WriteJSON(w, http.StatusUnauthorized, body)
}

func (h *AuthHandlers) countLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// logout handles POST /auth/logout by deleting the caller's session row.
// The token stays cryptographically valid until it expires but no longer
// authenticates.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.Token == "" {
		httputil.WriteBadRequest(w, "no session token")
		return
	}

	if err := h.sessions.DeleteByToken(r.Context(), authCtx.Token); err != nil {
		httputil.LogAndWriteInternalError(w, r, "logout failed", err)
		return
	}

	h.recorder.Record(r.Context(), activity.RequestRecord(r, authCtx.User.ID, activity.TypeLogout, "user logged out"))
	httputil.WriteSuccessMessage(w, "logged out", nil)
}

type meResponse struct {
	User     *auth.User     `json:"user"`
	Settings *auth.Settings `json:"settings"`
}

// me handles GET /auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, middleware.MsgAuthRequired)
		return
	}

	settings, err := h.accounts.GetSettings(r.Context(), authCtx.User.ID)
	if err != nil {
		httputil.LogAndWriteInternalError(w, r, "failed to load settings", err)
		return
	}
	httputil.WriteSuccess(w, meResponse{User: authCtx.User, Settings: settings})
}

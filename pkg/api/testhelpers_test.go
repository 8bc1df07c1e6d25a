package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spendwise/pkg/accounts"
	"github.com/platinummonkey/spendwise/pkg/activity"
	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/middleware"
	"github.com/platinummonkey/spendwise/pkg/observability"
)

const testPassword = "Secr3t!pass"

var testNow = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

// fakeAccounts is an in-memory AccountStore
type fakeAccounts struct {
	mu       sync.Mutex
	hasher   *auth.PasswordHasher
	users    map[int64]*auth.User
	settings map[int64]*auth.Settings
	nextID   int64

	findErr   error
	deleted   []int64
	lastLogin []int64
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		hasher:   auth.NewPasswordHasher(4),
		users:    map[int64]*auth.User{},
		settings: map[int64]*auth.Settings{},
		nextID:   1,
	}
}

func (f *fakeAccounts) add(t *testing.T, username string, role auth.Role, active bool) *auth.User {
	t.Helper()
	u, err := f.Create(context.Background(), accounts.NewUser{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err)
	u.IsActive = active
	return u
}

func (f *fakeAccounts) Create(_ context.Context, nu accounts.NewUser) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == nu.Username {
			return nil, accounts.ErrDuplicateUsername
		}
		if u.Email == auth.NormalizeEmail(nu.Email) {
			return nil, accounts.ErrDuplicateEmail
		}
	}
	hash, err := f.hasher.Hash(nu.Password)
	if err != nil {
		return nil, err
	}
	if nu.Role == "" {
		nu.Role = auth.RoleUser
	}
	u := &auth.User{
		ID:           f.nextID,
		Username:     nu.Username,
		Email:        auth.NormalizeEmail(nu.Email),
		PasswordHash: hash,
		FullName:     nu.FullName,
		Role:         nu.Role,
		IsActive:     true,
	}
	f.nextID++
	f.users[u.ID] = u
	s := auth.DefaultSettings(u.ID)
	f.settings[u.ID] = &s
	return u, nil
}

func (f *fakeAccounts) FindByID(_ context.Context, id int64) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return u, nil
}

func (f *fakeAccounts) FindByLogin(_ context.Context, identifier string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if u.Username == identifier || u.Email == strings.ToLower(identifier) {
			return u, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (f *fakeAccounts) UpdateLastLogin(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogin = append(f.lastLogin, id)
	return nil
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, id int64, upd accounts.ProfileUpdate) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	if upd.ChangesPassword() {
		if upd.CurrentPassword == "" {
			return nil, accounts.ErrCurrentPasswordRequired
		}
		if !f.hasher.Verify(upd.CurrentPassword, u.PasswordHash) {
			return nil, accounts.ErrWrongPassword
		}
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	return u, nil
}

func (f *fakeAccounts) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return accounts.ErrNotFound
	}
	delete(f.users, id)
	delete(f.settings, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAccounts) GetSettings(_ context.Context, id int64) (*auth.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[id]
	if !ok {
		d := auth.DefaultSettings(id)
		s = &d
		f.settings[id] = s
	}
	return s, nil
}

func (f *fakeAccounts) UpdateSettings(ctx context.Context, id int64, upd accounts.SettingsUpdate) (*auth.Settings, error) {
	s, _ := f.GetSettings(ctx, id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if upd.Currency != nil {
		s.Currency = *upd.Currency
	}
	if upd.Theme != nil {
		s.Theme = *upd.Theme
	}
	return s, nil
}

func (f *fakeAccounts) List(_ context.Context, filter accounts.ListFilter) (*accounts.UserPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &accounts.UserPage{Page: filter.Page, TotalPages: 1}
	for _, u := range f.users {
		if filter.Search == "" || strings.Contains(u.Username, filter.Search) {
			page.Users = append(page.Users, accounts.UserSummary{ID: u.ID, Username: u.Username, Role: u.Role})
		}
	}
	page.Total = int64(len(page.Users))
	return page, nil
}

func (f *fakeAccounts) SetActive(_ context.Context, id int64, active bool) (*accounts.StatusChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	if u.Role == auth.RoleAdmin && !active {
		return nil, accounts.ErrAdminDeactivation
	}
	u.IsActive = active
	return &accounts.StatusChange{ID: u.ID, Username: u.Username, IsActive: active}, nil
}

// fakeSessions is an in-memory SessionStore that honours expiry
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
	now      func() time.Time
}

func newFakeSessions(now func() time.Time) *fakeSessions {
	return &fakeSessions{sessions: map[string]*auth.Session{}, now: now}
}

func (f *fakeSessions) Create(_ context.Context, s *auth.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = int64(len(f.sessions) + 1)
	f.sessions[s.Token] = s
	return nil
}

func (f *fakeSessions) FindValid(_ context.Context, token string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || !s.IsValid(f.now()) {
		return nil, auth.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) DeleteByToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// activityLog is an activity.Store that only keeps inserts
type activityLog struct {
	mu      sync.Mutex
	records []activity.Record
}

func (a *activityLog) Insert(_ context.Context, rec activity.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *activityLog) types() []activity.Type {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []activity.Type
	for _, r := range a.records {
		out = append(out, r.Type)
	}
	return out
}

func (a *activityLog) Search(context.Context, activity.SearchFilter, activity.Caller) (*activity.Page, error) {
	return &activity.Page{Items: []*activity.Entry{}}, nil
}

func (a *activityLog) CountByType(context.Context, activity.SearchFilter, activity.Caller) ([]activity.TypeCount, error) {
	return nil, nil
}

func (a *activityLog) Statistics(context.Context, time.Time) (*activity.Statistics, error) {
	return &activity.Statistics{}, nil
}

func (a *activityLog) Recent(context.Context, int) ([]*activity.Entry, error) { return nil, nil }

func (a *activityLog) Export(context.Context, activity.SearchFilter, activity.Caller) ([]*activity.Entry, error) {
	return nil, nil
}

func (a *activityLog) Preview(context.Context, activity.SearchFilter, activity.Caller) (*activity.Preview, error) {
	return &activity.Preview{}, nil
}

func (a *activityLog) OlderThan(context.Context, time.Time) ([]*activity.Entry, error) {
	return nil, nil
}

func (a *activityLog) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

// ownerTable is a static OwnerLookup
type ownerTable map[int64]int64

func (o ownerTable) Owner(_ context.Context, _ string, id int64) (int64, error) {
	owner, ok := o[id]
	if !ok {
		return 0, middleware.ErrResourceNotFound
	}
	return owner, nil
}

type testEnv struct {
	server   *Server
	accounts *fakeAccounts
	sessions *fakeSessions
	activity *activityLog
	clock    *time.Time
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	clock := testNow
	now := func() time.Time { return clock }

	tokens, err := auth.NewTokenService("test-secret", time.Hour, auth.WithTokenClock(now))
	require.NoError(t, err)
	attempts, err := auth.NewMemoryAttemptTracker(auth.AttemptPolicy{MaxAttempts: 5, Window: 15 * time.Minute}, 100, now)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	log := &activityLog{}
	env := &testEnv{
		accounts: newFakeAccounts(),
		sessions: newFakeSessions(now),
		activity: log,
		clock:    &clock,
	}

	cfg := Config{
		Accounts: env.accounts,
		Sessions: env.sessions,
		Tokens:   tokens,
		Hasher:   env.accounts.hasher,
		Attempts: attempts,
		Activity: activity.NewService(log, logger),
		Logger:   logger,
		Clock:    now,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	env.server, err = NewServer(cfg)
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env struct {
		Data loginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data.Token)
	return env.Data.Token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

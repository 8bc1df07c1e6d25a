package activity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spendwise/pkg/auth"
)

type captured struct {
	records []Record
}

func (c *captured) Record(_ context.Context, rec Record) {
	c.records = append(c.records, rec)
}

func TestCapture(t *testing.T) {
	opts := CaptureOptions{
		Type:     TypeExpenseDelete,
		Describe: func(r *http.Request) string { return "deleted expense " + r.URL.Query().Get("id") },
		Metadata: func(r *http.Request) map[string]interface{} {
			return map[string]interface{}{"id": r.URL.Query().Get("id")}
		},
	}

	serve := func(rec Recorder, user *auth.User, status int) {
		h := InjectRecorder(rec)(Capture(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})))
		req := httptest.NewRequest(http.MethodDelete, "/api/expenses?id=5", nil)
		req.Header.Set("User-Agent", "test-agent")
		req.RemoteAddr = "203.0.113.9:40000"
		if user != nil {
			req = req.WithContext(auth.NewContext(req.Context(), &auth.AuthContext{User: user}))
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	t.Run("records on success", func(t *testing.T) {
		rec := &captured{}
		serve(rec, plainUser, http.StatusNoContent)

		require.Len(t, rec.records, 1)
		got := rec.records[0]
		assert.Equal(t, int64(7), got.UserID)
		assert.Equal(t, TypeExpenseDelete, got.Type)
		assert.Equal(t, "deleted expense 5", got.Description)
		assert.Equal(t, "203.0.113.9", got.IPAddress)
		assert.Equal(t, "test-agent", got.UserAgent)
		assert.Equal(t, "5", got.Metadata["id"])
	})

	t.Run("skips failed responses", func(t *testing.T) {
		rec := &captured{}
		serve(rec, plainUser, http.StatusForbidden)
		assert.Empty(t, rec.records)
	})

	t.Run("skips anonymous requests", func(t *testing.T) {
		rec := &captured{}
		serve(rec, nil, http.StatusOK)
		assert.Empty(t, rec.records)
	})
}

func TestFromContext_DefaultsToNoop(t *testing.T) {
	r := FromContext(context.Background())
	assert.IsType(t, NoopRecorder{}, r)
	assert.NotPanics(t, func() { r.Record(context.Background(), Record{}) })
}

func TestTypeKnown(t *testing.T) {
	assert.True(t, TypeSettingsUpdate.Known())
	assert.False(t, Type("budget_create").Known())
	assert.Len(t, KnownTypes, 12)
}

package postgres

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spendwise/pkg/storage"
)

// fakeS3 answers the handful of path-style requests the client makes
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]string
	meta    map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string]string{}, meta: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case len(parts) == 2 && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(body)
		f.meta[r.URL.Path] = r.Header.Get("X-Amz-Meta-Checksum-Sha256")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3Server(t *testing.T, fake *fakeS3) string {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newTestS3Client(t *testing.T, fake *fakeS3) *S3Client {
	t.Helper()
	client, err := NewS3Client(context.Background(), storage.S3Config{
		Endpoint:     newFakeS3Server(t, fake),
		Region:       "us-east-1",
		Bucket:       "activity-archive",
		AccessKey:    "test",
		SecretKey:    "test",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	return client
}

func TestS3Client_CreatesBucket(t *testing.T) {
	fake := newFakeS3()
	client := newTestS3Client(t, fake)

	assert.True(t, fake.buckets["activity-archive"])
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestS3Client_PutObject(t *testing.T) {
	fake := newFakeS3()
	client := newTestS3Client(t, fake)

	err := client.PutObject(context.Background(), "activity/2026-01-31.json", strings.NewReader(`[{"id":1}]`), "application/json")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, `[{"id":1}]`, fake.objects["/activity-archive/activity/2026-01-31.json"])
	assert.Len(t, fake.meta["/activity-archive/activity/2026-01-31.json"], 64)
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), storage.S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

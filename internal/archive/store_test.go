package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"rjdctl/internal/config"
	"rjdctl/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 accepts bucket HEAD and object PUT requests
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	store, err := New(context.Background(), config.ArchiveConfig{
		Enabled:   true,
		Endpoint:  u.Host,
		Region:    "us-east-1",
		Bucket:    "reports",
		AccessKey: "access",
		SecretKey: "secret",
		Prefix:    "archive/",
	}, errors.NewNop())
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) }

	location, err := store.Upload(context.Background(), "reports/xyz.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/reports/archive/20261014T093000Z-xyz.pdf", location)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	key := "/reports/archive/20261014T093000Z-xyz.pdf"
	assert.Equal(t, "application/pdf", fake.types[key])
	assert.True(t, strings.Contains(string(fake.objects[key]), "%PDF"))
}

func TestNewDisabled(t *testing.T) {
	_, err := New(context.Background(), config.ArchiveConfig{}, errors.NewNop())
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
}

func TestObjectKey(t *testing.T) {
	s := &Store{prefix: "reports", now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }}

	assert.Equal(t, "reports/20260102T030405Z-xyz.pdf", s.objectKey("https://cdn.example.com/files/xyz.pdf"))
	assert.Equal(t, "reports/20260102T030405Z-cv.pdf", s.objectKey(`C:\tmp\cv.pdf`))
	assert.Equal(t, "reports/20260102T030405Z-report.pdf", s.objectKey(""))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("a.PDF"))
	assert.Equal(t, "application/json", contentType("a.json"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}

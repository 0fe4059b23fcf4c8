package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:         "test-agent",
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		RequestsPerSecond: 1000,
		BackoffBase:       time.Millisecond,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("zip bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "ita.zip")
	d, err := newTestFetcher().Download(context.Background(), srv.URL+"/ita.zip", path)
	require.NoError(t, err)
	assert.Equal(t, int64(9), d.Bytes)
	assert.Equal(t, path, d.Path)
	assert.Equal(t, "application/zip", d.ContentType)
	assert.Equal(t, 1, d.Attempts)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zip bytes", string(data))
	assert.NoFileExists(t, path+".part")
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d, err := newTestFetcher().Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "ita.zip"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, d.Attempts)
}

func TestDownload_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "ita.zip")
	_, err := newTestFetcher().Download(context.Background(), srv.URL, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(3), calls.Load())
	assert.NoFileExists(t, path)
}

func TestDownload_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Download(ctx, srv.URL, filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter("2"))
	assert.Equal(t, maxBackoff, retryAfter("3600"))
	assert.Zero(t, retryAfter(""))
	assert.Zero(t, retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Zero(t, retryAfter("-1"))
}

func TestBackoff_Bounded(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{BackoffBase: 100 * time.Millisecond})
	for attempt := 1; attempt <= 12; attempt++ {
		d := f.backoff(attempt)
		base := min(100*time.Millisecond<<(attempt-1), maxBackoff)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2+1)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(http.StatusTooManyRequests))
	assert.True(t, retryable(http.StatusBadGateway))
	assert.False(t, retryable(http.StatusNotFound))
	assert.False(t, retryable(http.StatusOK))
}

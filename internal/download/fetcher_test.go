package download

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

func newTestFetcher(opts ...Option) *HTTPFetcher {
	base := []Option{
		WithMaxRetries(2),
		WithBaseBackoff(5 * time.Millisecond),
	}
	return NewHTTPFetcher(append(base, opts...)...)
}

func TestFetchAll_DownloadsInIndexOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("content of " + r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	urls := []string{srv.URL + "/a.mp4", srv.URL + "/b.mp4", srv.URL + "/c.mp4"}
	dests := []string{
		filepath.Join(dir, "clip-0.mp4"),
		filepath.Join(dir, "clip-1.mp4"),
		filepath.Join(dir, "clip-2.mp4"),
	}

	f := newTestFetcher(WithMaxConcurrent(2))
	require.NoError(t, f.FetchAll(context.Background(), urls, dests))

	for i, want := range []string{"/a.mp4", "/b.mp4", "/c.mp4"} {
		content, err := os.ReadFile(dests[i])
		require.NoError(t, err)
		assert.Equal(t, "content of "+want, string(content))
	}
}

func TestFetchAll_NonSuccessStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := newTestFetcher()

	err := f.FetchAll(context.Background(),
		[]string{srv.URL + "/missing.mp4"},
		[]string{filepath.Join(dir, "clip-0.mp4")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Contains(t, err.Error(), "404")

	// A client error is not retried and leaves no partial file.
	_, statErr := os.Stat(filepath.Join(dir, "clip-0.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchAll_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok after retry"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := newTestFetcher()

	dest := filepath.Join(dir, "clip-0.mp4")
	require.NoError(t, f.FetchAll(context.Background(), []string{srv.URL + "/a.mp4"}, []string{dest}))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "ok after retry", string(content))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchAll_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := newTestFetcher()

	err := f.FetchAll(context.Background(),
		[]string{srv.URL + "/a.mp4"},
		[]string{filepath.Join(dir, "clip-0.mp4")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load()) // initial attempt + 2 retries
}

func TestFetchAll_OneFailureAbortsTheRest(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.mp4" {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	dir := t.TempDir()
	f := newTestFetcher(WithMaxConcurrent(2))

	start := time.Now()
	err := f.FetchAll(context.Background(),
		[]string{srv.URL + "/bad.mp4", srv.URL + "/slow.mp4"},
		[]string{filepath.Join(dir, "clip-0.mp4"), filepath.Join(dir, "clip-1.mp4")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchAll_InputValidation(t *testing.T) {
	f := newTestFetcher()

	err := f.FetchAll(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoURLs)

	err = f.FetchAll(context.Background(), []string{""}, []string{"dest"})
	assert.ErrorIs(t, err, ErrEmptyURL)

	err = f.FetchAll(context.Background(), []string{"http://x/a.mp4"}, nil)
	require.Error(t, err)
}

// Package download fetches source clips over HTTP into a local workspace.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// Static errors for download operations.
var (
	// ErrNoURLs is returned when no source URLs are provided.
	ErrNoURLs = errors.New("download: no source URLs provided")
	// ErrEmptyURL is returned when a source entry has no usable URL.
	ErrEmptyURL = errors.New("download: each file needs a signed_url or url")
	// ErrBadStatus is returned when a download response is not successful.
	ErrBadStatus = errors.New("download: unexpected response status")
)

// Fetcher downloads an ordered set of source clips to local files.
type Fetcher interface {
	// FetchAll downloads urls[i] to dests[i] for every index. Ordering of
	// the destination files follows the input indices regardless of
	// completion order. The first failure aborts the remaining work.
	FetchAll(ctx context.Context, urls, dests []string) error
}

// HTTPFetcher is the net/http implementation of Fetcher. Downloads run
// concurrently up to maxConcurrent, and transient failures are retried
// with exponential backoff.
type HTTPFetcher struct {
	client        *http.Client
	maxConcurrent int
	maxRetries    int
	baseBackoff   time.Duration
}

// Option is a function that configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithMaxConcurrent bounds the number of simultaneous downloads.
func WithMaxConcurrent(n int) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxConcurrent = n
		}
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) Option {
	return func(f *HTTPFetcher) {
		f.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.baseBackoff = d
	}
}

// NewClient returns an HTTP client with the given per-request timeout.
// A zero or negative timeout means no bound.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		return &http.Client{}
	}
	return &http.Client{Timeout: timeout}
}

// NewHTTPFetcher creates a fetcher with sensible defaults: three parallel
// downloads, three retries, one second initial backoff, five minute
// per-request timeout.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:        &http.Client{Timeout: 5 * time.Minute},
		maxConcurrent: 3,
		maxRetries:    3,
		baseBackoff:   1 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll downloads urls[i] to dests[i], preserving index order on disk.
func (f *HTTPFetcher) FetchAll(ctx context.Context, urls, dests []string) error {
	if len(urls) == 0 {
		return ErrNoURLs
	}
	if len(urls) != len(dests) {
		return fmt.Errorf("download: %d urls for %d destinations", len(urls), len(dests))
	}
	for _, u := range urls {
		if u == "" {
			return ErrEmptyURL
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, f.maxConcurrent)
	errs := make([]error, len(urls))
	var wg sync.WaitGroup

	for i := range urls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			if err := f.fetchWithRetry(ctx, urls[i], dests[i]); err != nil {
				errs[i] = err
				cancel() // abort the remaining downloads
			}
		}(i)
	}

	wg.Wait()

	// Report the failure of the lowest index so the error is stable.
	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("download %s: %w", urls[i], err)
		}
	}
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("download %s: %w", urls[i], err)
		}
	}
	return nil
}

// fetchWithRetry downloads one URL with exponential backoff on transient
// failures. Non-retryable HTTP statuses fail immediately.
func (f *HTTPFetcher) fetchWithRetry(ctx context.Context, url, dest string) error {
	var lastErr error
	backoff := f.baseBackoff

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := f.fetch(ctx, url, dest)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// fetch performs a single GET and streams the body to dest.
func (f *HTTPFetcher) fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &transientError{err: fmt.Errorf("get: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &transientError{err: statusErr}
		}
		return statusErr
	}

	out, err := os.Create(dest) // #nosec G304 - dest is inside the job workspace
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return &transientError{err: fmt.Errorf("write file: %w", err)}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("close file: %w", err)
	}

	return nil
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// isRetryable reports whether an error is transient.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *transientError
	return errors.As(err, &te)
}

package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBackoff = 30 * time.Second

var _ Downloader = (*HTTPFetcher)(nil)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	BackoffBase       time.Duration
}

// HTTPFetcher implements Downloader over net/http. Requests are rate
// limited; transport errors, 429s, and 5xx responses are retried with
// jittered exponential backoff, honoring Retry-After when present.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "safety-kpi/1.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

// Download fetches rawURL into path. The body lands in path+".part" first
// and is renamed on success, so an interrupted transfer never leaves a
// truncated file under the final name.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL, path string) (*Download, error) {
	resp, attempts, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return nil, eris.Wrap(err, "http: create file")
	}
	n, err := io.Copy(file, resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, eris.Wrapf(err, "http: write %s", path)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		_ = os.Remove(tmp)
		return nil, eris.Errorf("http: short body from %s: got %d of %d bytes", rawURL, n, resp.ContentLength)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, eris.Wrap(err, "http: rename file")
	}

	d := &Download{
		URL:         rawURL,
		Path:        path,
		Bytes:       n,
		ContentType: resp.Header.Get("Content-Type"),
		Attempts:    attempts,
	}
	zap.L().Info("http: download complete",
		zap.String("url", rawURL),
		zap.String("path", path),
		zap.Int64("bytes", n),
		zap.Int("attempts", attempts),
	)
	return d, nil
}

// get issues GET requests until one yields a non-retryable status. Any
// status other than 200 is an error. Returns the attempts used.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "http: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, attempt, eris.Wrap(err, "http: rate limiter wait")
		}

		resp, err := f.client.Do(req)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, attempt, eris.Wrap(ctx.Err(), "http: request cancelled")
			}
			lastErr = err
		case retryable(resp.StatusCode):
			wait = retryAfter(resp.Header.Get("Retry-After"))
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, rawURL)
		case resp.StatusCode != http.StatusOK:
			_ = resp.Body.Close()
			return nil, attempt, eris.Errorf("http: unexpected status %d from %s", resp.StatusCode, rawURL)
		default:
			return resp, attempt, nil
		}

		zap.L().Warn("http: attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt == f.opts.MaxRetries {
			break
		}
		if wait == 0 {
			wait = f.backoff(attempt)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, attempt, eris.Wrap(err, "http: backoff cancelled")
		}
	}
	return nil, f.opts.MaxRetries, eris.Wrap(lastErr, "http: all retries exhausted")
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryAfter parses a Retry-After header given in seconds. Dates and junk
// yield zero so the caller falls back to its own backoff.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxBackoff)
}

// backoff doubles BackoffBase per attempt up to maxBackoff and adds up to
// 50% jitter.
func (f *HTTPFetcher) backoff(attempt int) time.Duration {
	d := f.opts.BackoffBase << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

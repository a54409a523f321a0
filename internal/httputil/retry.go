// Package httputil issues mirror GET requests with jittered exponential
// backoff.
package httputil

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openra-mobius/mobius-content/internal/logging"
)

var log = logging.L("httputil")

// RetryConfig controls how often and how patiently a request is repeated.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFrac    float64 // 0.3 randomises each wait by up to 30% either way
}

// DefaultRetryConfig returns the defaults used for content mirrors.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
		JitterFrac:    0.3,
	}
}

// NoRetry performs a single attempt.
func NoRetry() RetryConfig {
	return RetryConfig{BackoffFactor: 1}
}

// delay returns the un-jittered wait before retry number n (1-based).
func (c RetryConfig) delay(n int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < n; i++ {
		d *= c.BackoffFactor
		if c.MaxDelay > 0 && d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	return time.Duration(d)
}

// StatusError reports an unexpected HTTP status from a mirror.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Get fetches url, retrying network errors and transient statuses (429 and
// 5xx gateway/availability failures). Any other response is returned as is,
// including non-200 ones. ctx is checked before every attempt and aborts
// backoff waits.
func Get(ctx context.Context, client *http.Client, url string, headers http.Header, cfg RetryConfig) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	var hint time.Duration
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := applyJitter(cfg.delay(attempt), cfg.JitterFrac)
			if hint > wait {
				wait = min(hint, max(cfg.MaxDelay, wait))
			}
			log.Debug("retrying request", "attempt", attempt, "delay", wait, logging.KeyURL, url)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, vals := range headers {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}

		resp, err := client.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, hint = err, 0
		case transient(resp.StatusCode):
			hint = retryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: url}
		default:
			return resp, nil
		}
	}

	log.Warn("all retries exhausted", logging.KeyURL, url, "attempts", cfg.MaxRetries+1, logging.KeyError, lastErr)
	return nil, lastErr
}

func transient(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
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

// applyJitter moves d by a random amount of up to frac*d either way.
func applyJitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	offset := float64(d) * frac * (2*rand.Float64() - 1)
	return max(time.Duration(float64(d)+offset), 0)
}

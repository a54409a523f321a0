package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/openra-mobius/mobius-content/internal/httputil"
)

// NewHTTPClient returns a client that gives up when a mirror takes longer
// than headerTimeout to start responding. The body itself is unbounded; a
// slow but steady transfer runs until it completes or its context ends.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: tr}
}

// HTTP fetches http and https URLs.
type HTTP struct {
	Client    *http.Client
	Retry     httputil.RetryConfig
	UserAgent string
}

func (h *HTTP) Fetch(ctx context.Context, u *url.URL, w io.Writer, progress Progress) error {
	var headers http.Header
	if h.UserAgent != "" {
		headers = http.Header{"User-Agent": {h.UserAgent}}
	}

	resp, err := httputil.Get(ctx, h.Client, u.String(), headers, h.Retry)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httputil.StatusError{StatusCode: resp.StatusCode, URL: u.Redacted()}
	}
	return copyWithProgress(ctx, w, resp.Body, resp.ContentLength, progress)
}

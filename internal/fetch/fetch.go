// Package fetch retrieves mirror objects over the transports a content
// manifest may reference: http(s), s3, gs, azblob and b2 URLs.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/httputil"
	"github.com/openra-mobius/mobius-content/internal/logging"
)

var log = logging.L("fetch")

// ErrUnsupportedScheme is returned for URLs no registered fetcher handles.
var ErrUnsupportedScheme = errors.New("fetch: unsupported url scheme")

// ErrTooLarge is returned by FetchText when the object exceeds the limit.
var ErrTooLarge = errors.New("fetch: object too large")

// Progress receives the running byte count and the total size, or -1 when
// the size is unknown.
type Progress func(received, total int64)

// Fetcher streams the object at u into w.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL, w io.Writer, progress Progress) error
}

// Registry dispatches by URL scheme.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register binds f to every scheme in schemes.
func (r *Registry) Register(f Fetcher, schemes ...string) {
	for _, s := range schemes {
		r.fetchers[strings.ToLower(s)] = f
	}
}

// Supports reports whether rawURL has a registered scheme.
func (r *Registry) Supports(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := r.fetchers[strings.ToLower(u.Scheme)]
	return ok
}

// Fetch streams rawURL into w.
func (r *Registry) Fetch(ctx context.Context, rawURL string, w io.Writer, progress Progress) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	f, ok := r.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if progress == nil {
		progress = func(int64, int64) {}
	}
	log.Debug("fetching", logging.KeyURL, u.Redacted())
	return f.Fetch(ctx, u, w, progress)
}

// FetchText fetches a small text object such as a mirror list. Objects
// larger than limit bytes are rejected.
func (r *Registry) FetchText(ctx context.Context, rawURL string, limit int64) (string, error) {
	var buf bytes.Buffer
	lw := &limitWriter{w: &buf, remaining: limit}
	if err := r.Fetch(ctx, rawURL, lw, nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type limitWriter struct {
	w         io.Writer
	remaining int64
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.remaining {
		return 0, ErrTooLarge
	}
	l.remaining -= int64(len(p))
	return l.w.Write(p)
}

const copyBufferSize = 32 * 1024

// copyWithProgress copies src to dst, reporting after every read and
// checking ctx before each one.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress Progress) error {
	buf := make([]byte, copyBufferSize)
	var received int64
	progress(0, total)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			received += int64(n)
			progress(received, total)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

// bucketKey splits scheme://bucket/key URLs.
func bucketKey(u *url.URL) (string, string, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("url %s: expected %s://bucket/key", u.Redacted(), u.Scheme)
	}
	return bucket, key, nil
}

// Options configures the built-in transports.
type Options struct {
	HTTPClient         *http.Client
	Retry              httputil.RetryConfig
	UserAgent          string
	S3Region           string
	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	GCSAnonymous       bool
	GCSCredentialsFile string
	AzureEndpoint      string
	B2Account          string
	B2Key              string
}

// NewDefaultRegistry registers every built-in transport.
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(&HTTP{Client: opts.HTTPClient, Retry: opts.Retry, UserAgent: opts.UserAgent}, "http", "https")
	r.Register(&S3{
		Region:    opts.S3Region,
		Endpoint:  opts.S3Endpoint,
		AccessKey: opts.S3AccessKey,
		SecretKey: opts.S3SecretKey,
		Anonymous: opts.S3AccessKey == "" || opts.S3SecretKey == "",
	}, "s3")
	r.Register(&GCS{Anonymous: opts.GCSAnonymous, CredentialsFile: opts.GCSCredentialsFile}, "gs")
	r.Register(&Azure{Endpoint: opts.AzureEndpoint}, "azblob")
	r.Register(&B2{Account: opts.B2Account, Key: opts.B2Key}, "b2")
	return r
}

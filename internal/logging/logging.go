// Package logging configures slog for the CLI and hands out component
// loggers that follow whatever configuration Init installs later.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Field keys shared by every package.
const (
	KeyComponent  = "component"
	KeySource     = "source"
	KeyOrigin     = "origin"
	KeyDownloadID = "downloadId"
	KeyURL        = "url"
	KeyError      = "error"
)

// step is one derivation applied to a logger: either a group or attrs.
type step struct {
	group string
	attrs []slog.Attr
}

// lateHandler forwards every record to the handler installed most recently,
// replaying the groups and attrs it was derived with in their original order.
// Package-level loggers are built in var blocks before main runs Init.
type lateHandler struct {
	target *atomic.Pointer[slog.Handler]
	steps  []step
}

func (h *lateHandler) resolve() slog.Handler {
	out := *h.target.Load()
	for _, s := range h.steps {
		if s.group != "" {
			out = out.WithGroup(s.group)
		} else {
			out = out.WithAttrs(s.attrs)
		}
	}
	return out
}

func (h *lateHandler) derive(s step) *lateHandler {
	steps := make([]step, len(h.steps), len(h.steps)+1)
	copy(steps, h.steps)
	return &lateHandler{target: h.target, steps: append(steps, s)}
}

func (h *lateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h *lateHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h *lateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.derive(step{attrs: append([]slog.Attr(nil), attrs...)})
}

func (h *lateHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(step{group: name})
}

var (
	installed atomic.Pointer[slog.Handler]
	root      = &lateHandler{target: &installed}
)

func init() {
	install(slog.NewTextHandler(os.Stderr, nil))
}

func install(h slog.Handler) {
	installed.Store(&h)
	slog.SetDefault(slog.New(root))
}

// Init installs the process-wide handler. format is "json" or "text"; level
// is parsed with ParseLevel. A nil out logs to stderr, leaving stdout to
// command output.
func Init(format, level string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		install(slog.NewJSONHandler(out, opts))
		return
	}
	install(slog.NewTextHandler(out, opts))
}

// L returns the logger for a component.
func L(component string) *slog.Logger {
	return slog.New(root.derive(step{attrs: []slog.Attr{slog.String(KeyComponent, component)}}))
}

// WithSource tags logger with a content source name.
func WithSource(logger *slog.Logger, source string) *slog.Logger {
	return logger.With(slog.String(KeySource, source))
}

// WithDownload tags logger with a fresh download correlation id and returns
// the id too.
func WithDownload(logger *slog.Logger) (*slog.Logger, string) {
	id := uuid.NewString()
	return logger.With(slog.String(KeyDownloadID, id)), id
}

// ParseLevel accepts slog level names in any case, plus "warning". Anything
// else is info.
func ParseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

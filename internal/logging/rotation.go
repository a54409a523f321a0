package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

const (
	defaultLogSizeMB  = 10
	defaultLogBackups = 3
)

// RotatingWriter appends to a log file and, once it would grow past the size
// limit, renames it to path.1 (shifting older generations up to path.N) and
// starts a fresh file. Safe for concurrent use.
type RotatingWriter struct {
	fs      afero.Fs
	path    string
	limit   int64
	backups int

	mu   sync.Mutex
	f    afero.File
	size int64
}

// NewRotatingWriter opens path on the OS filesystem.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	return NewRotatingWriterFs(afero.NewOsFs(), path, maxSizeMB, maxBackups)
}

// NewRotatingWriterFs opens path on fs, creating its directory. Non-positive
// limits fall back to 10 MB and 3 backups.
func NewRotatingWriterFs(fs afero.Fs, path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultLogSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultLogBackups
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingWriter{fs: fs, path: path, limit: int64(maxSizeMB) << 20, backups: maxBackups}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return 0, os.ErrClosed
	}
	// An empty file accepts any record, however large.
	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotate %s: %w", w.path, err)
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := w.fs.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.f, w.size = f, info.Size()
	return nil
}

func (w *RotatingWriter) generation(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

// rotate drops the oldest generation and shifts the rest up by one. Missing
// generations are expected, so rename errors are ignored.
func (w *RotatingWriter) rotate() error {
	w.f.Close()
	w.f = nil

	w.fs.Remove(w.generation(w.backups))
	for n := w.backups - 1; n >= 1; n-- {
		w.fs.Rename(w.generation(n), w.generation(n+1))
	}
	w.fs.Rename(w.path, w.generation(1))
	return w.open()
}

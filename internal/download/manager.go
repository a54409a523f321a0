package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"

	"github.com/openra-mobius/mobius-content/internal/checksum"
	"github.com/openra-mobius/mobius-content/internal/fetch"
	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/platform"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"
)

// mirrorListLimit caps the size of a fetched mirror list.
const mirrorListLimit = 1 << 20

// Transport fetches mirror lists and package data.
type Transport interface {
	Fetch(ctx context.Context, rawURL string, w io.Writer, progress fetch.Progress) error
	FetchText(ctx context.Context, rawURL string, limit int64) (string, error)
}

// Manager runs the download pipeline.
type Manager struct {
	Transport Transport
	Fs        afero.Fs
	Paths     platform.Paths

	// TempDir holds in-flight downloads; empty uses the OS temp dir.
	TempDir string
	// MinFreeSpace is the minimum free space in bytes required on the
	// target volume before saving.
	MinFreeSpace uint64
	// DiskUsage reports usage for the volume holding path.
	DiskUsage func(path string) (*disk.UsageStat, error)
	// Pick returns an index in [0, n) when choosing a mirror.
	Pick func(n int) int
}

// NewManager returns a manager with the default disk usage query and a
// uniform random mirror choice.
func NewManager(t Transport, fs afero.Fs, paths platform.Paths) *Manager {
	return &Manager{
		Transport: t,
		Fs:        fs,
		Paths:     paths,
		DiskUsage: disk.Usage,
		Pick:      rand.IntN,
	}
}

// Run executes the whole pipeline for dl and returns the saved path. emit
// receives every event on the calling goroutine. Cancellation returns
// ctx.Err(); every other failure is an *Error.
func (m *Manager) Run(ctx context.Context, dl *Download, emit func(Event)) (string, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	logger, _ := logging.WithDownload(log)
	logger = logger.With("title", dl.Title)

	url, err := m.resolveURL(ctx, dl, logger, emit)
	if err != nil {
		return "", err
	}

	host := DisplayHost(url)
	logger = logger.With(logging.KeyURL, url)
	logger.Info("downloading")
	emit(Event{State: StateDownloading, Progress: newProgress(host, 0, -1)})

	tmp, err := afero.TempFile(m.Fs, m.TempDir, "mobius-download-*")
	if err != nil {
		return "", &Error{Stage: StateDownloading, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		if err := m.Fs.Remove(tmpPath); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			logger.Warn("failed to remove temp file", "path", tmpPath, logging.KeyError, err)
		}
	}()

	var size int64
	err = m.Transport.Fetch(ctx, url, tmp, func(received, total int64) {
		size = received
		emit(Event{State: StateDownloading, Progress: newProgress(host, received, total)})
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("download cancelled")
			return "", ctx.Err()
		}
		logger.Warn("download failed", logging.KeyError, err)
		return "", &Error{Stage: StateDownloading, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &Error{Stage: StateDownloading, Err: err}
	}

	if dl.SHA1 != "" {
		emit(Event{State: StateVerifying})
		sum, err := checksum.HashFile(m.Fs, tmpPath)
		if err != nil {
			logger.Warn("sha1 calculation failed", logging.KeyError, err)
			return "", &Error{Stage: StateVerifying, Err: err}
		}
		logger.Debug("verifying download", "sha1", sum, "expected", dl.SHA1)
		if !checksum.Equal(sum, dl.SHA1) {
			return "", &Error{Stage: StateVerifying, Err: fmt.Errorf("sha1 %s does not match expected %s", sum, checksum.Normalize(dl.SHA1))}
		}
	}

	emit(Event{State: StateSaving})
	target := m.Paths.ResolvePath(dl.Path)
	if err := m.save(tmpPath, target, size); err != nil {
		logger.Warn("saving failed", "target", target, logging.KeyError, err)
		return "", &Error{Stage: StateSaving, Err: err}
	}

	logger.Info("download saved", "target", target, "size", FormatSize(size))
	emit(Event{State: StateDone, Progress: newProgress(host, size, size)})
	return target, nil
}

func (m *Manager) resolveURL(ctx context.Context, dl *Download, logger *slog.Logger, emit func(Event)) (string, error) {
	if dl.MirrorList == "" {
		return dl.URL, nil
	}

	emit(Event{State: StateFetchingMirrorList})
	text, err := m.Transport.FetchText(ctx, dl.MirrorList, mirrorListLimit)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Warn("mirror list fetch failed", logging.KeyURL, dl.MirrorList, logging.KeyError, err)
		return "", &Error{Stage: StateFetchingMirrorList, Err: err}
	}

	mirrors := ParseMirrorList(text)
	if len(mirrors) == 0 {
		return "", &Error{Stage: StateFetchingMirrorList, Err: errors.New("mirror list is empty")}
	}
	pick := m.Pick
	if pick == nil {
		pick = rand.IntN
	}
	chosen := mirrors[pick(len(mirrors))]
	logger.Debug("mirror selected", "mirrors", len(mirrors), logging.KeyURL, chosen)
	return chosen, nil
}

// save copies the verified temp file next to target and renames it into
// place.
func (m *Manager) save(tmpPath, target string, size int64) error {
	dir := filepath.Dir(target)
	if err := m.checkFreeSpace(dir, size); err != nil {
		return err
	}
	if err := m.Fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	src, err := m.Fs.Open(tmpPath)
	if err != nil {
		return err
	}
	defer src.Close()

	part := target + ".part"
	dst, err := m.Fs.Create(part)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		m.Fs.Remove(part)
		return err
	}
	if err := dst.Close(); err != nil {
		m.Fs.Remove(part)
		return err
	}
	if err := m.Fs.Rename(part, target); err != nil {
		m.Fs.Remove(part)
		return err
	}
	return nil
}

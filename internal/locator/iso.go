package locator

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/spf13/afero"
)

const (
	isoMinSize        = 34816
	isoSignatureAt    = 32769
	isoVolumeLabelAt  = 32808
	isoVolumeLabelLen = 32
)

var isoSignature = []byte("CD001")

var errNotISO = errors.New("not an ISO-9660 image")

// ISOVolumes maps volume labels to image paths for the *.iso files directly
// inside dir. Concurrent scans of the same directory share one result.
func (l *Locator) ISOVolumes(dir string) map[string]string {
	v, _, _ := l.isoScans.Do(filepath.Clean(dir), func() (any, error) {
		volumes, err := ScanISOVolumes(l.Fs, dir)
		if err != nil {
			log.Debug("iso scan failed", "dir", dir, logging.KeyError, err)
			return map[string]string{}, nil
		}
		return volumes, nil
	})
	return cloneVolumes(v.(map[string]string))
}

func cloneVolumes(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ScanISOVolumes reads the primary volume label of every top-level *.iso file
// in dir. Any candidate that is unreadable or not an ISO-9660 image fails the
// whole scan.
func ScanISOVolumes(fs afero.Fs, dir string) (map[string]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".iso") {
			continue
		}
		images = append(images, filepath.Join(dir, e.Name()))
	}
	sort.Strings(images)

	volumes := make(map[string]string, len(images))
	for _, path := range images {
		label, err := readVolumeLabel(fs, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		volumes[label] = path
	}
	return volumes, nil
}

func readVolumeLabel(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() < isoMinSize {
		return "", errNotISO
	}

	sig := make([]byte, len(isoSignature))
	if _, err := f.ReadAt(sig, isoSignatureAt); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if string(sig) != string(isoSignature) {
		return "", errNotISO
	}

	label := make([]byte, isoVolumeLabelLen)
	if _, err := f.ReadAt(label, isoVolumeLabelAt); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(strings.TrimRight(string(label), "\x00")), nil
}

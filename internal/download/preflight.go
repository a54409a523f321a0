package download

import (
	"fmt"
	"path/filepath"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/spf13/afero"
)

// checkFreeSpace requires max(size, MinFreeSpace) bytes free on the volume
// holding dir. Volumes that cannot be queried are allowed.
func (m *Manager) checkFreeSpace(dir string, size int64) error {
	if m.DiskUsage == nil {
		return nil
	}

	target := m.nearestExisting(dir)
	usage, err := m.DiskUsage(target)
	if err != nil {
		log.Warn("failed to check disk space", "path", target, logging.KeyError, err)
		return nil
	}

	need := m.MinFreeSpace
	if size > 0 && uint64(size) > need {
		need = uint64(size)
	}
	if usage.Free < need {
		return fmt.Errorf("insufficient disk space on %s: %s free, %s required",
			target, FormatSize(int64(usage.Free)), FormatSize(int64(need)))
	}
	return nil
}

// nearestExisting walks up from dir to the first directory that exists.
func (m *Manager) nearestExisting(dir string) string {
	for {
		if ok, _ := afero.DirExists(m.Fs, dir); ok {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

package locator

import (
	"github.com/openra-mobius/mobius-content/internal/logging"
)

// Drive is a mounted volume that may hold an original game disc.
type Drive struct {
	Mountpoint string
	Device     string
	Fstype     string
}

// Drives lists mounted volumes, including removable and optical media.
func (l *Locator) Drives() []Drive {
	if l.Partitions == nil {
		return nil
	}
	parts, err := l.Partitions(true)
	if err != nil {
		log.Debug("partition enumeration failed", logging.KeyError, err)
		if len(parts) == 0 {
			return nil
		}
	}

	drives := make([]Drive, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if p.Mountpoint == "" || seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true
		drives = append(drives, Drive{Mountpoint: p.Mountpoint, Device: p.Device, Fstype: p.Fstype})
	}
	return drives
}

// Package locator discovers where licensed game content is installed: Steam
// libraries, registry-recorded install directories, ISO images and drives.
//
// Every lookup reports absence as a normal result. Errors encountered while
// probing are logged at debug level and treated as "no candidate".
package locator

import (
	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/platform"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

var log = logging.L("locator")

// Locator searches one filesystem and platform for content installations.
type Locator struct {
	Fs       afero.Fs
	Paths    platform.Paths
	Registry Registry

	Partitions func(all bool) ([]disk.PartitionStat, error)
	isoScans   singleflight.Group
}

// New returns a Locator backed by the system registry and partition table.
func New(fs afero.Fs, paths platform.Paths) *Locator {
	return &Locator{
		Fs:         fs,
		Paths:      paths,
		Registry:   SystemRegistry(),
		Partitions: disk.Partitions,
	}
}

func (l *Locator) isDir(path string) bool {
	ok, err := afero.IsDir(l.Fs, path)
	return err == nil && ok
}

func (l *Locator) isFile(path string) bool {
	info, err := l.Fs.Stat(path)
	return err == nil && !info.IsDir()
}

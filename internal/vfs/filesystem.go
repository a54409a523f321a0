// Package vfs implements the virtual filesystem that content sources mount
// into: an ordered stack of packages, optionally addressable by an explicit
// mount name using "name|entry" paths.
package vfs

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/platform"
	"github.com/spf13/afero"
)

var log = logging.L("vfs")

// MountInfo describes one mounted package.
type MountInfo struct {
	Name    string
	Package string
}

type mount struct {
	name string
	pkg  Package
}

// FileSystem is safe for concurrent use. Mount order is significant: later
// mounts override earlier ones for unqualified lookups.
type FileSystem struct {
	base  afero.Fs
	paths platform.Paths

	mu       sync.RWMutex
	mounts   []mount
	explicit map[string]Package
}

// New creates an empty filesystem reading disk paths from base.
func New(base afero.Fs, paths platform.Paths) *FileSystem {
	return &FileSystem{
		base:     base,
		paths:    paths,
		explicit: make(map[string]Package),
	}
}

// Base returns the underlying disk filesystem.
func (fs *FileSystem) Base() afero.Fs { return fs.base }

// Paths returns the platform roots used for path resolution.
func (fs *FileSystem) Paths() platform.Paths { return fs.paths }

// Exists reports whether path names an existing package on disk or an entry
// inside a mounted package.
func (fs *FileSystem) Exists(path string) bool {
	if platform.IsDiskPath(path) {
		ok, _ := afero.Exists(fs.base, fs.paths.ResolvePath(path))
		return ok
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if name, entry, ok := strings.Cut(path, "|"); ok {
		pkg, mounted := fs.explicit[name]
		return mounted && pkg.Contains(entry)
	}

	for i := len(fs.mounts) - 1; i >= 0; i-- {
		if fs.mounts[i].pkg.Contains(path) {
			return true
		}
	}

	ok, _ := afero.Exists(fs.base, path)
	return ok
}

// OpenPackage opens path as a package without mounting it. Directories become
// folders; .zip/.oramap and .iso files are opened as archives, and other files
// are recognised by signature.
func (fs *FileSystem) OpenPackage(path string) (Package, error) {
	diskPath, err := fs.diskPath(path)
	if err != nil {
		return nil, err
	}

	info, err := fs.base.Stat(diskPath)
	if err != nil {
		return nil, fmt.Errorf("open package %s: %w", path, ErrNotFound)
	}
	if info.IsDir() {
		return NewFolder(fs.base, diskPath), nil
	}

	switch strings.ToLower(filepath.Ext(diskPath)) {
	case ".zip", ".oramap":
		return OpenZip(fs.base, diskPath)
	case ".iso":
		return OpenISO(fs.base, diskPath)
	}

	switch sniffPackage(fs.base, diskPath) {
	case "zip":
		return OpenZip(fs.base, diskPath)
	case "iso":
		return OpenISO(fs.base, diskPath)
	}
	return nil, fmt.Errorf("open package %s: %w", path, ErrUnknownPackage)
}

// sniffPackage identifies disc images and archives shipped under other
// extensions (GAME.BIN, DATA.CD) by their signature.
func sniffPackage(base afero.Fs, path string) string {
	f, err := base.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	magic := make([]byte, 5)
	if _, err := f.ReadAt(magic[:4], 0); err == nil && string(magic[:4]) == "PK\x03\x04" {
		return "zip"
	}
	if _, err := f.ReadAt(magic, isoFirstDescriptor*isoSectorSize+1); err == nil && string(magic) == "CD001" {
		return "iso"
	}
	return ""
}

// diskPath maps a manifest path to a location on the base filesystem. Paths
// qualified with a mounted folder name resolve inside that folder.
func (fs *FileSystem) diskPath(path string) (string, error) {
	if platform.IsDiskPath(path) {
		return fs.paths.ResolvePath(path), nil
	}

	if name, entry, ok := strings.Cut(path, "|"); ok {
		fs.mu.RLock()
		pkg, mounted := fs.explicit[name]
		fs.mu.RUnlock()
		if !mounted {
			return "", fmt.Errorf("open package %s: mount %q: %w", path, name, ErrNotFound)
		}
		folder, isFolder := pkg.(*Folder)
		if !isFolder {
			return "", fmt.Errorf("open package %s: nested packages are only supported inside folders", path)
		}
		return filepath.Join(folder.Path(), filepath.FromSlash(cleanEntry(entry))), nil
	}

	return filepath.Clean(path), nil
}

// Mount opens path as a package and mounts it under name.
func (fs *FileSystem) Mount(path, name string) error {
	pkg, err := fs.OpenPackage(path)
	if err != nil {
		return err
	}
	fs.MountPackage(pkg, name)
	return nil
}

// MountPackage mounts an already opened package. An empty name mounts the
// package for unqualified lookups only; reusing a name replaces the explicit
// binding but keeps the earlier package in the search order.
func (fs *FileSystem) MountPackage(pkg Package, name string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.mounts = append(fs.mounts, mount{name: name, pkg: pkg})
	if name != "" {
		fs.explicit[name] = pkg
	}
	log.Debug("mounted package", "package", pkg.Name(), "mount", name)
}

// Open returns a stream for an entry, searching explicit mounts first for
// qualified paths and the mount stack newest-first otherwise.
func (fs *FileSystem) Open(path string) (io.ReadSeekCloser, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if name, entry, ok := strings.Cut(path, "|"); ok && !platform.IsDiskPath(path) {
		pkg, mounted := fs.explicit[name]
		if !mounted {
			return nil, fmt.Errorf("open %s: mount %q: %w", path, name, ErrNotFound)
		}
		return pkg.GetStream(entry)
	}

	for i := len(fs.mounts) - 1; i >= 0; i-- {
		if fs.mounts[i].pkg.Contains(path) {
			return fs.mounts[i].pkg.GetStream(path)
		}
	}
	return nil, fmt.Errorf("open %s: %w", path, ErrNotFound)
}

// Mounts lists mounted packages in mount order.
func (fs *FileSystem) Mounts() []MountInfo {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]MountInfo, 0, len(fs.mounts))
	for _, m := range fs.mounts {
		out = append(out, MountInfo{Name: m.name, Package: m.pkg.Name()})
	}
	return out
}

// Unmount closes and removes every package mounted under name. It reports
// whether anything was removed.
func (fs *FileSystem) Unmount(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.explicit[name]; !ok {
		return false
	}
	delete(fs.explicit, name)

	kept := fs.mounts[:0]
	for _, m := range fs.mounts {
		if m.name != name {
			kept = append(kept, m)
			continue
		}
		if err := m.pkg.Close(); err != nil {
			log.Warn("failed to close package", "package", m.pkg.Name(), logging.KeyError, err)
		}
	}
	fs.mounts = kept
	return true
}

// UnmountAll closes and removes every mounted package.
func (fs *FileSystem) UnmountAll() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, m := range fs.mounts {
		if err := m.pkg.Close(); err != nil {
			log.Warn("failed to close package", "package", m.pkg.Name(), logging.KeyError, err)
		}
	}
	fs.mounts = nil
	fs.explicit = make(map[string]Package)
}

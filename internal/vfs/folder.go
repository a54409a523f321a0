package vfs

import (
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Folder exposes a directory tree as a package.
type Folder struct {
	path string
	fs   afero.Fs
}

// NewFolder roots a package at dir on base.
func NewFolder(base afero.Fs, dir string) *Folder {
	return &Folder{
		path: dir,
		fs:   afero.NewBasePathFs(base, dir),
	}
}

func (f *Folder) Name() string { return f.path }

// Path returns the directory backing the package.
func (f *Folder) Path() string { return f.path }

func (f *Folder) Contains(entry string) bool {
	info, err := f.fs.Stat(cleanEntry(entry))
	return err == nil && !info.IsDir()
}

func (f *Folder) Contents() []string {
	var names []string
	afero.Walk(f.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		names = append(names, cleanEntry(filepath.ToSlash(p)))
		return nil
	})
	sort.Strings(names)
	return names
}

func (f *Folder) GetStream(entry string) (io.ReadSeekCloser, error) {
	file, err := f.fs.Open(cleanEntry(entry))
	if err != nil {
		return nil, &EntryError{Package: f.path, Entry: entry, Err: ErrNotFound}
	}
	return file, nil
}

func (f *Folder) Close() error { return nil }

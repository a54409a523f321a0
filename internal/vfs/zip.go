package vfs

import (
	"archive/zip"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/afero/zipfs"
)

// ZipPackage exposes a zip archive through afero's zipfs.
type ZipPackage struct {
	name    string
	file    afero.File
	fs      afero.Fs
	entries map[string]struct{}
}

// OpenZip opens the archive at path on base.
func OpenZip(base afero.Fs, path string) (*ZipPackage, error) {
	f, err := base.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat zip %s: %w", path, err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read zip %s: %w", path, err)
	}

	entries := make(map[string]struct{}, len(zr.File))
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		entries[cleanEntry(zf.Name)] = struct{}{}
	}

	return &ZipPackage{
		name:    path,
		file:    f,
		fs:      zipfs.New(zr),
		entries: entries,
	}, nil
}

func (z *ZipPackage) Name() string { return z.name }

func (z *ZipPackage) Contains(entry string) bool {
	_, ok := z.entries[cleanEntry(entry)]
	return ok
}

func (z *ZipPackage) Contents() []string {
	names := make([]string, 0, len(z.entries))
	for name := range z.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (z *ZipPackage) GetStream(entry string) (io.ReadSeekCloser, error) {
	if !z.Contains(entry) {
		return nil, &EntryError{Package: z.name, Entry: entry, Err: ErrNotFound}
	}
	f, err := z.fs.Open("/" + cleanEntry(entry))
	if err != nil {
		return nil, &EntryError{Package: z.name, Entry: entry, Err: err}
	}
	return f, nil
}

func (z *ZipPackage) Close() error {
	return z.file.Close()
}

package vfs

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned when a package or entry does not exist.
	ErrNotFound = errors.New("vfs: not found")

	// ErrUnknownPackage is returned for files that are not a recognised package type.
	ErrUnknownPackage = errors.New("vfs: unknown package type")
)

// Package is a read-only collection of named entries.
type Package interface {
	Name() string
	Contains(entry string) bool
	Contents() []string
	GetStream(entry string) (io.ReadSeekCloser, error)
	Close() error
}

// EntryError describes a failed entry lookup inside a package.
type EntryError struct {
	Package string
	Entry   string
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Package, e.Entry, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

func cleanEntry(entry string) string {
	entry = strings.ReplaceAll(entry, "\\", "/")
	entry = path.Clean("/" + entry)
	return strings.TrimPrefix(entry, "/")
}

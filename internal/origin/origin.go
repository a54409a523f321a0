// Package origin implements the strategies that decide whether a content
// source is present on this machine and mount it into the virtual filesystem.
package origin

import (
	"errors"
	"log/slog"
	"slices"
	"sort"

	"github.com/openra-mobius/mobius-content/internal/checksum"
	"github.com/openra-mobius/mobius-content/internal/locator"
	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/manifest"
	"github.com/openra-mobius/mobius-content/internal/vfs"
	"github.com/spf13/afero"
)

var log = logging.L("origin")

// Mode selects whether a resolution may mount packages.
type Mode int

const (
	// DryRun checks availability without touching the filesystem.
	DryRun Mode = iota
	// Mount applies the mounts of a successful resolution.
	Mount
)

func (m Mode) String() string {
	if m == Mount {
		return "mount"
	}
	return "dry-run"
}

// Result is the outcome of one resolution attempt.
type Result int

const (
	NotResolved Result = iota
	Resolved
)

func (r Result) String() string {
	if r == Resolved {
		return "resolved"
	}
	return "not resolved"
}

// Env carries the collaborators an origin resolves against.
type Env struct {
	FS      *vfs.FileSystem
	Locator *locator.Locator
}

// Origin is one way of finding a content source.
type Origin interface {
	Resolve(env *Env, mode Mode) Result
	Attributes(env *Env) Attributes
}

// Base holds the fields shared by every origin type.
type Base struct {
	Label   string
	IDFiles map[string]checksum.IDFile
	Attrs   Attributes
}

// DecodeBase reads IDFiles and Attributes from an origin node.
func DecodeBase(n *manifest.Node) (Base, error) {
	ids, err := manifest.DecodeIDFiles(n.Get("IDFiles"))
	if err != nil {
		return Base{}, err
	}
	attrs, err := DecodeAttributes(n.Get("Attributes"))
	if err != nil {
		return Base{}, err
	}
	return Base{Label: n.Key, IDFiles: ids, Attrs: attrs}, nil
}

func (b Base) logger(kind string) *slog.Logger {
	return log.With(logging.KeyOrigin, b.Label, "type", kind)
}

// Default resolves trivially and mounts nothing. It represents content that
// is already present with no further identification.
type Default struct {
	Base
}

func (Default) Resolve(*Env, Mode) Result { return Resolved }

func (o Default) Attributes(*Env) Attributes { return o.Attrs.Clone() }

// Attributes maps an attribute name to the values an origin offers.
type Attributes map[string][]string

// DecodeAttributes reads a mapping of attribute name to value list.
func DecodeAttributes(n *manifest.Node) (Attributes, error) {
	attrs := Attributes{}
	if n == nil {
		return attrs, nil
	}
	if len(n.Nodes) == 0 && n.Value != "" {
		return nil, &manifest.FieldError{Path: "Attributes", Line: n.Line, Err: errors.New("expected a mapping")}
	}
	for _, c := range n.Nodes {
		attrs[c.Key] = manifest.StringList(c)
	}
	return attrs, nil
}

// Offers reports whether value is one of the values offered for name.
func (a Attributes) Offers(name, value string) bool {
	return slices.Contains(a[name], value)
}

// Names returns the attribute names in sorted order.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy, never nil.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = slices.Clone(v)
	}
	return out
}

// add appends values not already offered for name.
func (a Attributes) add(name string, values ...string) {
	for _, v := range values {
		if !slices.Contains(a[name], v) {
			a[name] = append(a[name], v)
		}
	}
}

func dirExists(fs afero.Fs, path string) bool {
	ok, err := afero.IsDir(fs, path)
	return err == nil && ok
}

// resolveFolder verifies dir against ids and, in Mount mode, mounts it.
func resolveFolder(env *Env, dir, mountName string, ids map[string]checksum.IDFile, mode Mode, logger *slog.Logger) Result {
	base := env.FS.Base()
	if !dirExists(base, dir) {
		return NotResolved
	}

	folder := vfs.NewFolder(base, dir)
	if !checksum.Verify(folder, ids) {
		logger.Debug("identification files do not match", "path", dir)
		return NotResolved
	}
	if mode == Mount {
		env.FS.MountPackage(folder, mountName)
	}
	logger.Debug("origin resolved", "path", dir, "mode", mode.String())
	return Resolved
}

package origin

import (
	"path/filepath"

	"github.com/openra-mobius/mobius-content/internal/locator"
	"github.com/openra-mobius/mobius-content/internal/manifest"
)

// RegistryDirectory resolves an install directory recorded in the Windows
// registry. It never resolves on other platforms.
type RegistryDirectory struct {
	Base
	RegistryKey      string
	RegistryValue    string
	RegistryPrefixes []string
	Mount            string
}

func newRegistryDirectory(n *manifest.Node, base Base) (Origin, error) {
	key, err := manifest.Required(n, "RegistryKey")
	if err != nil {
		return nil, err
	}
	value, err := manifest.Required(n, "RegistryValue")
	if err != nil {
		return nil, err
	}

	prefixes := manifest.StringList(n.Get("RegistryPrefixes"))
	if len(prefixes) == 0 {
		prefixes = append([]string(nil), locator.DefaultRegistryPrefixes...)
	}
	return &RegistryDirectory{
		Base:             base,
		RegistryKey:      key,
		RegistryValue:    value,
		RegistryPrefixes: prefixes,
		Mount:            manifest.String(n, "Mount", ""),
	}, nil
}

// Resolve tries each prefix in order and takes the first directory whose
// identification files match.
func (o *RegistryDirectory) Resolve(env *Env, mode Mode) Result {
	if env.Locator == nil {
		return NotResolved
	}
	logger := o.logger("RegistryDirectory")
	for _, dir := range env.Locator.RegistryDirectories(o.RegistryPrefixes, o.RegistryKey, o.RegistryValue) {
		if resolveFolder(env, dir, o.Mount, o.IDFiles, mode, logger) == Resolved {
			return Resolved
		}
	}
	return NotResolved
}

func (o *RegistryDirectory) Attributes(*Env) Attributes { return o.Attrs.Clone() }

// SteamDirectory resolves a Steam app installation.
type SteamDirectory struct {
	Base
	AppID        int
	SubDirectory string
	Mount        string
}

func newSteamDirectory(n *manifest.Node, base Base) (Origin, error) {
	if _, err := manifest.Required(n, "AppID"); err != nil {
		return nil, err
	}
	id, err := manifest.Int(n, "AppID", 0)
	if err != nil {
		return nil, err
	}
	return &SteamDirectory{
		Base:         base,
		AppID:        int(id),
		SubDirectory: manifest.String(n, "SubDirectory", ""),
		Mount:        manifest.String(n, "Mount", ""),
	}, nil
}

func (o *SteamDirectory) Resolve(env *Env, mode Mode) Result {
	if env.Locator == nil {
		return NotResolved
	}
	install, ok := env.Locator.FindSteamInstallation(o.AppID)
	if !ok {
		return NotResolved
	}
	return resolveFolder(env, joinSub(install, o.SubDirectory), o.Mount, o.IDFiles, mode, o.logger("SteamDirectory"))
}

func (o *SteamDirectory) Attributes(*Env) Attributes { return o.Attrs.Clone() }

// Directory resolves a fixed directory path.
type Directory struct {
	Base
	Path  string
	Mount string
}

func newDirectory(n *manifest.Node, base Base) (Origin, error) {
	path, err := manifest.Required(n, "Path")
	if err != nil {
		return nil, err
	}
	return &Directory{Base: base, Path: path, Mount: manifest.String(n, "Mount", "")}, nil
}

func (o *Directory) Resolve(env *Env, mode Mode) Result {
	dir := env.FS.Paths().ResolvePath(o.Path)
	return resolveFolder(env, dir, o.Mount, o.IDFiles, mode, o.logger("Directory"))
}

func (o *Directory) Attributes(*Env) Attributes { return o.Attrs.Clone() }

// Disc resolves the first mounted drive holding the expected files.
type Disc struct {
	Base
	SubDirectory string
	Mount        string
}

func newDisc(n *manifest.Node, base Base) (Origin, error) {
	return &Disc{
		Base:         base,
		SubDirectory: manifest.String(n, "SubDirectory", ""),
		Mount:        manifest.String(n, "Mount", ""),
	}, nil
}

func (o *Disc) Resolve(env *Env, mode Mode) Result {
	if env.Locator == nil {
		return NotResolved
	}
	logger := o.logger("Disc")
	for _, d := range env.Locator.Drives() {
		if resolveFolder(env, joinSub(d.Mountpoint, o.SubDirectory), o.Mount, o.IDFiles, mode, logger) == Resolved {
			return Resolved
		}
	}
	return NotResolved
}

func (o *Disc) Attributes(*Env) Attributes { return o.Attrs.Clone() }

func joinSub(dir, sub string) string {
	if sub == "" {
		return dir
	}
	return filepath.Join(dir, filepath.FromSlash(sub))
}

// Package platform describes the host operating system and resolves the
// engine-style path prefixes used throughout content manifests.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// OS is the operating system family.
type OS int

const (
	Other OS = iota
	Windows
	MacOS
)

func (o OS) String() string {
	switch o {
	case Windows:
		return "windows"
	case MacOS:
		return "macos"
	default:
		return "other"
	}
}

// Current returns the family of the running OS.
func Current() OS {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "darwin":
		return MacOS
	default:
		return Other
	}
}

// SupportDirPrefix marks a path relative to the user support directory.
const SupportDirPrefix = "^SupportDir|"

// Paths carries the per-user roots used to resolve manifest paths.
type Paths struct {
	OS         OS
	HomeDir    string
	SupportDir string
}

// Default derives Paths for the running user. supportDir overrides the
// platform default when non-empty.
func Default(supportDir string) Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	p := Paths{OS: Current(), HomeDir: home}
	if supportDir != "" {
		p.SupportDir = p.expandHome(supportDir)
	} else {
		p.SupportDir = defaultSupportDir(p.OS, home)
	}
	return p
}

func defaultSupportDir(o OS, home string) string {
	switch o {
	case Windows:
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "OpenRA")
		}
		return filepath.Join(home, "AppData", "Roaming", "OpenRA")
	case MacOS:
		return filepath.Join(home, "Library", "Application Support", "OpenRA")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "openra")
		}
		return filepath.Join(home, ".config", "openra")
	}
}

// ResolvePath expands the ^SupportDir| prefix and a leading ~ into absolute
// paths. Any other path is cleaned and returned unchanged.
func (p Paths) ResolvePath(path string) string {
	if path == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(path, SupportDirPrefix); ok {
		return filepath.Join(p.SupportDir, filepath.FromSlash(rest))
	}

	return filepath.Clean(p.expandHome(path))
}

// IsDiskPath reports whether path names a location on disk rather than an
// entry inside a mounted package.
func IsDiskPath(path string) bool {
	return strings.HasPrefix(path, "^") || strings.HasPrefix(path, "~") || filepath.IsAbs(path)
}

func (p Paths) expandHome(path string) string {
	if path == "~" {
		return p.HomeDir
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(p.HomeDir, filepath.FromSlash(rest))
	}
	return path
}

package locator

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/platform"
)

const (
	steamInstalledFlags = "4"

	steamRegistryInstall = `HKEY_LOCAL_MACHINE\SOFTWARE\WOW6432Node\Valve\Steam`
	steamRegistryUser    = `HKEY_CURRENT_USER\SOFTWARE\Valve\Steam`
)

func (l *Locator) steamRoots() []string {
	switch l.Paths.OS {
	case platform.Windows:
		var roots []string
		if l.Registry == nil {
			return nil
		}
		if p, ok := l.Registry.ReadString(steamRegistryInstall, "InstallPath"); ok {
			roots = append(roots, p)
		}
		if p, ok := l.Registry.ReadString(steamRegistryUser, "SteamPath"); ok {
			roots = append(roots, filepath.FromSlash(p))
		}
		return roots
	case platform.MacOS:
		return []string{filepath.Join(l.Paths.HomeDir, "Library", "Application Support", "Steam")}
	default:
		return []string{filepath.Join(l.Paths.HomeDir, ".steam", "root")}
	}
}

// SteamLibraries returns every Steam library folder: each existing install
// root followed by the additional libraries it records in libraryfolders.vdf.
func (l *Locator) SteamLibraries() []string {
	var libraries []string
	seen := make(map[string]bool)
	add := func(p string) {
		key := filepath.Clean(p)
		if seen[key] {
			return
		}
		seen[key] = true
		libraries = append(libraries, p)
	}

	for _, root := range l.steamRoots() {
		if !l.isDir(root) {
			continue
		}
		add(root)

		vdf := filepath.Join(root, "steamapps", "libraryfolders.vdf")
		if !l.isFile(vdf) {
			continue
		}
		kv, err := ParseKeyValuesFile(l.Fs, vdf)
		if err != nil {
			log.Debug("unreadable library folders", "path", vdf, logging.KeyError, err)
			continue
		}

		// Older clients record libraries as "1", "2", ... until a gap.
		for i := 1; ; i++ {
			p, ok := kv.Get(strconv.Itoa(i))
			if !ok {
				break
			}
			add(unescapeVDF(p))
		}
		// Newer clients nest each library in a block with a "path" key.
		for _, p := range kv.All("path") {
			add(unescapeVDF(p))
		}
	}
	return libraries
}

func unescapeVDF(s string) string {
	return strings.ReplaceAll(s, `\\`, `\`)
}

// FindSteamInstallation returns the install directory of a fully installed
// Steam app, searching every library in order.
func (l *Locator) FindSteamInstallation(appID int) (string, bool) {
	manifestName := fmt.Sprintf("appmanifest_%d.acf", appID)
	for _, library := range l.SteamLibraries() {
		manifest := filepath.Join(library, "steamapps", manifestName)
		if !l.isFile(manifest) {
			continue
		}

		kv, err := ParseKeyValuesFile(l.Fs, manifest)
		if err != nil {
			log.Debug("unreadable app manifest", "path", manifest, logging.KeyError, err)
			continue
		}

		if flags, ok := kv.Get("StateFlags"); !ok || flags != steamInstalledFlags {
			log.Debug("steam app not fully installed", "appId", appID, "library", library)
			continue
		}
		installDir, ok := kv.Get("installdir")
		if !ok || installDir == "" {
			continue
		}
		return filepath.Join(library, "steamapps", "common", installDir), true
	}
	return "", false
}

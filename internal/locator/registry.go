package locator

import (
	"strings"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/platform"
)

// Registry reads string values from the Windows registry. Keys are full paths
// including the hive, e.g. `HKEY_LOCAL_MACHINE\Software\Westwood\Red Alert`.
type Registry interface {
	ReadString(key, value string) (string, bool)
}

// DefaultRegistryPrefixes are tried in order when an origin does not
// configure its own.
var DefaultRegistryPrefixes = []string{
	`HKEY_LOCAL_MACHINE\Software\`,
	`HKEY_LOCAL_MACHINE\SOFTWARE\Wow6432Node\`,
}

// FindRegistryDirectory looks up key under each prefix and returns the first
// recorded directory that exists. Lookups only run on Windows.
func (l *Locator) FindRegistryDirectory(prefixes []string, key, value string) (string, bool) {
	dirs := l.RegistryDirectories(prefixes, key, value)
	if len(dirs) == 0 {
		return "", false
	}
	return dirs[0], true
}

// RegistryDirectories returns every existing directory recorded under key,
// in prefix order.
func (l *Locator) RegistryDirectories(prefixes []string, key, value string) []string {
	if l.Paths.OS != platform.Windows || l.Registry == nil {
		return nil
	}
	if len(prefixes) == 0 {
		prefixes = DefaultRegistryPrefixes
	}

	var dirs []string
	for _, prefix := range prefixes {
		full := joinRegistryKey(prefix, key)
		raw, ok := l.Registry.ReadString(full, value)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		dir, err := canonicalPath(raw)
		if err != nil {
			log.Debug("registry path unusable", "key", full, "value", value, logging.KeyError, err)
			continue
		}
		if !l.isDir(dir) {
			log.Debug("registry directory missing", "key", full, "path", dir)
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

func joinRegistryKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimRight(prefix, `\`) + `\` + strings.TrimLeft(key, `\`)
}

// splitHive separates the hive name from the subkey path.
func splitHive(key string) (hive, path string, ok bool) {
	hive, path, ok = strings.Cut(key, `\`)
	if !ok || path == "" {
		return "", "", false
	}
	return strings.ToUpper(hive), path, true
}

// MapRegistry is an in-memory Registry keyed by case-insensitive key path.
type MapRegistry map[string]map[string]string

// ReadString implements Registry.
func (m MapRegistry) ReadString(key, value string) (string, bool) {
	for k, values := range m {
		if !strings.EqualFold(strings.TrimRight(k, `\`), strings.TrimRight(key, `\`)) {
			continue
		}
		for name, v := range values {
			if strings.EqualFold(name, value) {
				return v, true
			}
		}
	}
	return "", false
}

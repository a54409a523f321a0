//go:build windows

package locator

import (
	"path/filepath"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

type systemRegistry struct{}

// SystemRegistry returns a Registry backed by the Windows registry.
func SystemRegistry() Registry { return systemRegistry{} }

func (systemRegistry) ReadString(key, value string) (string, bool) {
	hive, path, ok := splitHive(key)
	if !ok {
		return "", false
	}

	var root registry.Key
	switch hive {
	case "HKLM", "HKEY_LOCAL_MACHINE":
		root = registry.LOCAL_MACHINE
	case "HKCU", "HKEY_CURRENT_USER":
		root = registry.CURRENT_USER
	case "HKCR", "HKEY_CLASSES_ROOT":
		root = registry.CLASSES_ROOT
	case "HKU", "HKEY_USERS":
		root = registry.USERS
	default:
		return "", false
	}

	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer k.Close()

	s, _, err := k.GetStringValue(value)
	if err != nil {
		return "", false
	}
	return s, true
}

// canonicalPath returns the absolute long-name form of path. Short 8.3
// components recorded by old installers are expanded when the path exists.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	p, err := windows.UTF16PtrFromString(abs)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetLongPathName(p, &buf[0], uint32(len(buf)))
	if err != nil || n == 0 || int(n) > len(buf) {
		return abs, nil
	}
	return windows.UTF16ToString(buf[:n]), nil
}

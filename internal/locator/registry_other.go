//go:build !windows

package locator

import "path/filepath"

type noRegistry struct{}

// SystemRegistry returns a Registry that never finds anything.
func SystemRegistry() Registry { return noRegistry{} }

func (noRegistry) ReadString(string, string) (string, bool) { return "", false }

func canonicalPath(path string) (string, error) {
	return filepath.Abs(path)
}

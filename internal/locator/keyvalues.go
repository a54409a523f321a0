package locator

import (
	"bufio"
	"fmt"
	"io"
	"regexp"

	"github.com/spf13/afero"
)

var keyValuePattern = regexp.MustCompile(`^\s*"([^"]*)"\s*"([^"]*)"\s*$`)

// Pair is one "key" "value" line from a Valve key/value manifest.
type Pair struct {
	Key   string
	Value string
}

// KeyValues holds manifest pairs in file order.
type KeyValues []Pair

// Get returns the last value recorded for key.
func (kv KeyValues) Get(key string) (string, bool) {
	for i := len(kv) - 1; i >= 0; i-- {
		if kv[i].Key == key {
			return kv[i].Value, true
		}
	}
	return "", false
}

// All returns every value recorded for key, in file order.
func (kv KeyValues) All(key string) []string {
	var out []string
	for _, p := range kv {
		if p.Key == key {
			out = append(out, p.Value)
		}
	}
	return out
}

// ParseKeyValues reads lines of the form `"key" "value"`. Lines that do not
// match (braces, section headers, comments) are ignored.
func ParseKeyValues(r io.Reader) (KeyValues, error) {
	var kv KeyValues
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m := keyValuePattern.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		kv = append(kv, Pair{Key: m[1], Value: m[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return kv, nil
}

// ParseKeyValuesFile parses the manifest at path.
func ParseKeyValuesFile(fs afero.Fs, path string) (KeyValues, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kv, err := ParseKeyValues(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return kv, nil
}

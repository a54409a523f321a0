package manifest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/checksum"
)

// ErrMissing marks a required field that is absent or empty.
var ErrMissing = errors.New("required field missing")

// FieldError reports a field that could not be decoded.
type FieldError struct {
	Path string
	Line int
	Err  error
}

func (e *FieldError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Errorf builds a FieldError for the child key of n.
func Errorf(n *Node, key, format string, args ...any) error {
	line := 0
	if c := n.Get(key); c != nil {
		line = c.Line
	} else if n != nil {
		line = n.Line
	}
	return &FieldError{Path: key, Line: line, Err: fmt.Errorf(format, args...)}
}

// Within prefixes a FieldError path with parent, leaving other errors intact.
func Within(parent string, err error) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{Path: parent + "." + fe.Path, Line: fe.Line, Err: fe.Err}
	}
	return err
}

// Required returns the non-empty scalar value of key.
func Required(n *Node, key string) (string, error) {
	c := n.Get(key)
	if c == nil || strings.TrimSpace(c.Value) == "" {
		line := 0
		if n != nil {
			line = n.Line
		}
		return "", &FieldError{Path: key, Line: line, Err: ErrMissing}
	}
	return strings.TrimSpace(c.Value), nil
}

// String returns the scalar value of key or def when absent.
func String(n *Node, key, def string) string {
	c := n.Get(key)
	if c == nil || c.Value == "" {
		return def
	}
	return strings.TrimSpace(c.Value)
}

// Bool parses key as a boolean, returning def when absent.
func Bool(n *Node, key string, def bool) (bool, error) {
	c := n.Get(key)
	if c == nil || c.Value == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(c.Value))
	if err != nil {
		return false, &FieldError{Path: key, Line: c.Line, Err: fmt.Errorf("invalid boolean %q", c.Value)}
	}
	return v, nil
}

// Int parses key as a base-10 integer, returning def when absent.
func Int(n *Node, key string, def int64) (int64, error) {
	c := n.Get(key)
	if c == nil || c.Value == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(c.Value), 10, 64)
	if err != nil {
		return 0, &FieldError{Path: key, Line: c.Line, Err: fmt.Errorf("invalid integer %q", c.Value)}
	}
	return v, nil
}

// StringList reads a node as a list of values: either a sequence of scalars
// or a comma-separated scalar.
func StringList(n *Node) []string {
	if n == nil {
		return nil
	}
	var raw []string
	if len(n.Nodes) > 0 {
		for _, c := range n.Nodes {
			raw = append(raw, c.Value)
		}
	} else {
		raw = strings.Split(n.Value, ",")
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Pair is one ordered key/value entry of a mapping.
type Pair struct {
	Key   string
	Value string
}

// DecodeStringMap reads an ordered mapping of scalars. A sequence is accepted
// too, yielding keys with empty values, so that package lists may omit
// mount names.
func DecodeStringMap(n *Node) ([]Pair, error) {
	if n == nil {
		return nil, nil
	}
	if len(n.Nodes) == 0 && n.Value != "" {
		return nil, &FieldError{Path: n.Key, Line: n.Line, Err: errors.New("expected a mapping")}
	}

	out := make([]Pair, 0, len(n.Nodes))
	for _, c := range n.Nodes {
		if len(c.Nodes) > 0 {
			return nil, &FieldError{Path: n.Key + "." + c.Key, Line: c.Line, Err: errors.New("expected a scalar")}
		}
		if n.Sequence {
			out = append(out, Pair{Key: strings.TrimSpace(c.Value)})
			continue
		}
		out = append(out, Pair{Key: c.Key, Value: strings.TrimSpace(c.Value)})
	}
	return out, nil
}

// DecodeIDFiles reads identification files. Each entry is either a scalar
// SHA-1 or a mapping with SHA1 and optional Offset and Length.
func DecodeIDFiles(n *Node) (map[string]checksum.IDFile, error) {
	out := make(map[string]checksum.IDFile)
	if n == nil {
		return out, nil
	}

	for _, c := range n.Nodes {
		if len(c.Nodes) == 0 {
			if strings.TrimSpace(c.Value) == "" {
				return nil, &FieldError{Path: "IDFiles." + c.Key, Line: c.Line, Err: ErrMissing}
			}
			out[c.Key] = checksum.IDFile{SHA1: strings.TrimSpace(c.Value)}
			continue
		}

		sha, err := Required(c, "SHA1")
		if err != nil {
			return nil, Within("IDFiles."+c.Key, err)
		}
		offset, err := Int(c, "Offset", 0)
		if err != nil {
			return nil, Within("IDFiles."+c.Key, err)
		}
		length, err := Int(c, "Length", 0)
		if err != nil {
			return nil, Within("IDFiles."+c.Key, err)
		}
		if offset < 0 || length < 0 {
			return nil, &FieldError{Path: "IDFiles." + c.Key, Line: c.Line, Err: errors.New("offset and length must not be negative")}
		}
		out[c.Key] = checksum.IDFile{SHA1: sha, Offset: offset, Length: length}
	}
	return out, nil
}

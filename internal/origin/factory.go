package origin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/manifest"
)

// Constructor builds an origin of one type from its manifest node.
type Constructor func(n *manifest.Node, base Base) (Origin, error)

// Factory maps type identifiers to constructors.
type Factory struct {
	ctors map[string]Constructor
}

// NewFactory returns a factory that only knows the Default type.
func NewFactory() *Factory {
	f := &Factory{ctors: make(map[string]Constructor)}
	f.Register("Default", func(_ *manifest.Node, base Base) (Origin, error) {
		return Default{Base: base}, nil
	})
	return f
}

// DefaultFactory returns a factory with every built-in origin type.
func DefaultFactory() *Factory {
	f := NewFactory()
	f.Register("CncFreeware", newCncFreeware)
	f.Register("RegistryDirectory", newRegistryDirectory)
	f.Register("SteamDirectory", newSteamDirectory)
	f.Register("Directory", newDirectory)
	f.Register("Disc", newDisc)
	return f
}

// Register adds or replaces the constructor for typ.
func (f *Factory) Register(typ string, c Constructor) {
	f.ctors[typ] = c
}

// Types lists the registered type identifiers.
func (f *Factory) Types() []string {
	out := make([]string, 0, len(f.ctors))
	for t := range f.ctors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TypeOf returns the type identifier of an origin node: its scalar value, or
// its Type field when the node is a mapping.
func TypeOf(n *manifest.Node) string {
	if len(n.Nodes) == 0 {
		return strings.TrimSpace(n.Value)
	}
	return manifest.String(n, "Type", "")
}

// New constructs the origin described by n. A node without a type is a
// Default origin.
func (f *Factory) New(n *manifest.Node) (Origin, error) {
	typ := TypeOf(n)
	if typ == "" {
		typ = "Default"
	}

	ctor, ok := f.ctors[typ]
	if !ok {
		return nil, &manifest.FieldError{Path: "Origins." + n.Key, Line: n.Line, Err: fmt.Errorf("unknown origin type %q", typ)}
	}

	base, err := DecodeBase(n)
	if err != nil {
		return nil, manifest.Within("Origins."+n.Key, err)
	}
	o, err := ctor(n, base)
	if err != nil {
		return nil, manifest.Within("Origins."+n.Key, err)
	}
	return o, nil
}

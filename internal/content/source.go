// Package content decides which content source provides a mod's assets,
// mounts it at mod load, and maintains the user's persisted selection.
package content

import (
	"errors"
	"fmt"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/manifest"
	"github.com/openra-mobius/mobius-content/internal/origin"
)

var log = logging.L("content")

// Package is an archive or directory mounted under an optional explicit name.
type Package struct {
	Path  string
	Mount string
}

func decodePackages(n *manifest.Node) ([]Package, error) {
	pairs, err := manifest.DecodeStringMap(n)
	if err != nil {
		return nil, err
	}
	out := make([]Package, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Package{Path: p.Key, Mount: p.Value})
	}
	return out, nil
}

// Source is one way of providing a mod's content: an ordered list of origins
// and the packages to mount once an origin resolves.
type Source struct {
	Name                 string
	Title                string
	RequiresQuickInstall bool
	Packages             []Package

	origins []*manifest.Node
	factory *origin.Factory
}

// DecodeSource reads a source node. Every origin is constructed once here so
// that configuration errors surface at load time.
func DecodeSource(n *manifest.Node, f *origin.Factory) (*Source, error) {
	s := &Source{
		Name:    n.Key,
		Title:   manifest.String(n, "Title", n.Key),
		factory: f,
	}

	var err error
	if s.RequiresQuickInstall, err = manifest.Bool(n, "RequiresQuickInstall", false); err != nil {
		return nil, err
	}
	if s.Packages, err = decodePackages(n.Get("Packages")); err != nil {
		return nil, err
	}

	if origins := n.Get("Origins"); origins != nil {
		for _, o := range origins.Nodes {
			if _, err := f.New(o); err != nil {
				return nil, err
			}
			s.origins = append(s.origins, o)
		}
	}
	return s, nil
}

// Origins returns the number of configured origins.
func (s *Source) Origins() int { return len(s.origins) }

// TryMount resolves origins in order and mounts the first that succeeds.
func (s *Source) TryMount(env *origin.Env) (bool, origin.Attributes) {
	return s.resolve(env, origin.Mount)
}

// CanMount reports whether any origin would resolve, without mounting.
func (s *Source) CanMount(env *origin.Env) (bool, origin.Attributes) {
	return s.resolve(env, origin.DryRun)
}

// resolve constructs origins lazily so that origins after the first
// resolving one are never built or evaluated.
func (s *Source) resolve(env *origin.Env, mode origin.Mode) (bool, origin.Attributes) {
	logger := logging.WithSource(log, s.Name)
	for _, n := range s.origins {
		o, err := s.factory.New(n)
		if err != nil {
			logger.Error("origin construction failed", logging.KeyOrigin, n.Key, logging.KeyError, err)
			continue
		}
		if o.Resolve(env, mode) == origin.Resolved {
			logger.Debug("source resolved", logging.KeyOrigin, n.Key, "mode", mode.String())
			return true, o.Attributes(env)
		}
	}
	return false, origin.Attributes{}
}

func (s *Source) String() string {
	return fmt.Sprintf("%s (%s)", s.Title, s.Name)
}

func decodeSources(n *manifest.Node, f *origin.Factory) ([]*Source, error) {
	if n == nil {
		return nil, &manifest.FieldError{Path: "ContentSources", Err: manifest.ErrMissing}
	}
	sources := make([]*Source, 0, len(n.Nodes))
	seen := make(map[string]bool, len(n.Nodes))
	for _, c := range n.Nodes {
		if seen[c.Key] {
			return nil, &manifest.FieldError{Path: "ContentSources." + c.Key, Line: c.Line, Err: errors.New("duplicate source")}
		}
		seen[c.Key] = true
		s, err := DecodeSource(c, f)
		if err != nil {
			return nil, manifest.Within("ContentSources."+c.Key, err)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

func findSource(sources []*Source, name string) *Source {
	for _, s := range sources {
		if s.Name == name {
			return s
		}
	}
	return nil
}

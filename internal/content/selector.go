package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/openra-mobius/mobius-content/internal/origin"
	"github.com/openra-mobius/mobius-content/internal/settings"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// SelectionStore persists selections keyed by mod id.
type SelectionStore interface {
	Load(mod string) (settings.Selection, error)
	Save(mod string, sel settings.Selection) error
}

// Candidate is the dry-run result of one source.
type Candidate struct {
	Source     *Source
	Available  bool
	Attributes origin.Attributes
}

// Selector drives the source selection flow of the content mod.
type Selector struct {
	Content *ModContent
	Env     *origin.Env
	Store   SelectionStore
}

// Candidates runs CanMount for every source concurrently. Results keep the
// declared source order.
func (s *Selector) Candidates(ctx context.Context) ([]Candidate, error) {
	out := make([]Candidate, len(s.Content.Sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range s.Content.Sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, attrs := src.CanMount(s.Env)
			out[i] = Candidate{Source: src, Available: ok, Attributes: attrs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Available returns only the sources that can currently be mounted.
func (s *Selector) Available(ctx context.Context) ([]Candidate, error) {
	all, err := s.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, c := range all {
		if c.Available {
			out = append(out, c)
		}
	}
	return out, nil
}

// Normalize loads the stored selection and repairs it: an unknown or
// unavailable source is replaced by the first available one, and catalog
// attributes are defaulted for the selected source. The repaired selection
// is saved. With no available source nothing is saved and the returned
// selection has no source.
func (s *Selector) Normalize(ctx context.Context) (settings.Selection, error) {
	sel, err := s.Store.Load(s.Content.Mod)
	if err != nil {
		return settings.Selection{}, err
	}

	available, err := s.Available(ctx)
	if err != nil {
		return settings.Selection{}, err
	}
	if len(available) == 0 {
		sel = sel.Clone()
		sel.Source = ""
		return sel, nil
	}

	chosen := available[0]
	for _, c := range available {
		if c.Source.Name == sel.Source {
			chosen = c
			break
		}
	}
	return s.apply(sel, chosen)
}

// Select makes source the current choice. The source must be available.
func (s *Selector) Select(ctx context.Context, source string) (settings.Selection, error) {
	if err := ctx.Err(); err != nil {
		return settings.Selection{}, err
	}
	src := s.Content.Source(source)
	if src == nil {
		return settings.Selection{}, fmt.Errorf("unknown content source %q", source)
	}
	ok, attrs := src.CanMount(s.Env)
	if !ok {
		return settings.Selection{}, fmt.Errorf("content source %q is not available", source)
	}

	sel, err := s.Store.Load(s.Content.Mod)
	if err != nil {
		return settings.Selection{}, err
	}
	return s.apply(sel, Candidate{Source: src, Available: true, Attributes: attrs})
}

// SetAttribute stores value for a catalog attribute. The value must be
// offered by the currently selected source.
func (s *Selector) SetAttribute(attr, value string) (settings.Selection, error) {
	if _, ok := s.Content.Attribute(attr); !ok {
		return settings.Selection{}, fmt.Errorf("unknown attribute %q", attr)
	}

	sel, err := s.Store.Load(s.Content.Mod)
	if err != nil {
		return settings.Selection{}, err
	}
	src := s.Content.Source(sel.Source)
	if src == nil {
		return settings.Selection{}, errors.New("no content source selected")
	}
	if _, attrs := src.CanMount(s.Env); !attrs.Offers(attr, value) {
		return settings.Selection{}, fmt.Errorf("%s does not offer %s=%s", src.Name, attr, value)
	}

	sel = sel.Clone()
	sel.Attributes[attr] = value
	if err := s.Store.Save(s.Content.Mod, sel); err != nil {
		return settings.Selection{}, err
	}
	return sel, nil
}

// NeedsQuickInstall reports whether source requires the quick-install
// package and it has not been downloaded yet.
func (s *Selector) NeedsQuickInstall(source *Source) bool {
	if source == nil || !source.RequiresQuickInstall {
		return false
	}
	qi := s.Content.QuickInstall
	if qi == nil || qi.Path == "" {
		return true
	}
	fs := s.Env.FS
	ok, _ := afero.Exists(fs.Base(), fs.Paths().ResolvePath(qi.Path))
	return !ok
}

// apply selects c and defaults every catalog attribute the source offers
// whose stored value is missing or no longer offered.
func (s *Selector) apply(sel settings.Selection, c Candidate) (settings.Selection, error) {
	sel = sel.Clone()
	sel.Source = c.Source.Name
	for _, name := range c.Attributes.Names() {
		if _, inCatalog := s.Content.Attribute(name); !inCatalog {
			continue
		}
		values := c.Attributes[name]
		if len(values) == 0 {
			continue
		}
		if v, ok := sel.Attribute(name); !ok || !c.Attributes.Offers(name, v) {
			sel.Attributes[name] = values[0]
		}
	}

	if err := s.Store.Save(s.Content.Mod, sel); err != nil {
		return settings.Selection{}, err
	}
	return sel, nil
}

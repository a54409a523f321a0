package content

import (
	"fmt"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/manifest"
	"github.com/openra-mobius/mobius-content/internal/origin"
	"github.com/openra-mobius/mobius-content/internal/settings"
)

// Loader mounts a mod's filesystem at load time.
type Loader struct {
	SourceSelectorMod string
	SystemPackages    []Package
	OverridePackages  []Package
	Sources           []*Source
}

// DecodeLoader reads the filesystem loader view of a content manifest.
func DecodeLoader(root *manifest.Node, f *origin.Factory) (*Loader, error) {
	selector, err := manifest.Required(root, "SourceSelectorMod")
	if err != nil {
		return nil, err
	}

	l := &Loader{SourceSelectorMod: selector}
	if l.SystemPackages, err = decodePackages(root.Get("SystemPackages")); err != nil {
		return nil, err
	}
	if l.OverridePackages, err = decodePackages(root.Get("OverridePackages")); err != nil {
		return nil, err
	}
	if l.Sources, err = decodeSources(root.Get("ContentSources"), f); err != nil {
		return nil, err
	}
	return l, nil
}

// Availability is the outcome of mounting at mod load. When content is not
// available the host should switch to the Redirect mod.
type Availability struct {
	Available bool
	Source    string
	Redirect  string
}

// Mount mounts system packages, then the selected source and its packages,
// then override packages. Only a system package failure is returned as an
// error; every other problem marks content unavailable.
func (l *Loader) Mount(env *origin.Env, sel settings.Selection) (Availability, error) {
	for _, p := range l.SystemPackages {
		if err := env.FS.Mount(p.Path, p.Mount); err != nil {
			return Availability{}, fmt.Errorf("mount system package %s: %w", p.Path, err)
		}
	}

	unavailable := Availability{Source: sel.Source, Redirect: l.SourceSelectorMod}

	source := findSource(l.Sources, sel.Source)
	if source == nil {
		log.Info("no valid content source selected", logging.KeySource, sel.Source)
		return unavailable, nil
	}
	logger := logging.WithSource(log, source.Name)

	ok, attrs := source.TryMount(env)
	if !ok {
		logger.Info("content source not found")
		return unavailable, nil
	}

	for _, name := range attrs.Names() {
		if chosen, stored := sel.Attribute(name); stored && !attrs.Offers(name, chosen) {
			logger.Info("selected attribute no longer offered", "attribute", name, "value", chosen)
			return unavailable, nil
		}
	}

	available := true
	for _, p := range l.mountOrder(source) {
		if err := env.FS.Mount(p.Path, p.Mount); err != nil {
			logger.Warn("failed to mount content package", "package", p.Path, logging.KeyError, err)
			available = false
		}
	}

	if !available {
		return unavailable, nil
	}
	logger.Info("content mounted")
	return Availability{Available: true, Source: source.Name}, nil
}

func (l *Loader) mountOrder(source *Source) []Package {
	out := make([]Package, 0, len(source.Packages)+len(l.OverridePackages))
	out = append(out, source.Packages...)
	return append(out, l.OverridePackages...)
}

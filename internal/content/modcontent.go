package content

import (
	"github.com/openra-mobius/mobius-content/internal/download"
	"github.com/openra-mobius/mobius-content/internal/manifest"
	"github.com/openra-mobius/mobius-content/internal/origin"
)

// Option is one selectable value of a catalog attribute.
type Option struct {
	Value string
	Label string
}

// Attribute is a user-selectable attribute and its labelled values.
type Attribute struct {
	Name    string
	Options []Option
}

// Label returns the display label for value, or value itself.
func (a Attribute) Label(value string) string {
	for _, o := range a.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// ModContent is the content catalog of one mod as seen by the source
// selector.
type ModContent struct {
	Mod          string
	FaqURL       string
	Sources      []*Source
	Attributes   []Attribute
	QuickInstall *download.Download
}

// DecodeModContent reads the selector view of a content manifest.
func DecodeModContent(root *manifest.Node, f *origin.Factory) (*ModContent, error) {
	mod, err := manifest.Required(root, "Mod")
	if err != nil {
		return nil, err
	}

	mc := &ModContent{
		Mod:    mod,
		FaqURL: manifest.String(root, "FaqUrl", ""),
	}
	if mc.Sources, err = decodeSources(root.Get("ContentSources"), f); err != nil {
		return nil, err
	}

	if attrs := root.Get("Attributes"); attrs != nil {
		for _, a := range attrs.Nodes {
			pairs, err := manifest.DecodeStringMap(a)
			if err != nil {
				return nil, manifest.Within("Attributes", err)
			}
			attr := Attribute{Name: a.Key}
			for _, p := range pairs {
				label := p.Value
				if label == "" {
					label = p.Key
				}
				attr.Options = append(attr.Options, Option{Value: p.Key, Label: label})
			}
			mc.Attributes = append(mc.Attributes, attr)
		}
	}

	if qi := root.Get("QuickInstall"); qi != nil {
		dl, err := download.DecodeDownload(qi)
		if err != nil {
			return nil, manifest.Within("QuickInstall", err)
		}
		mc.QuickInstall = dl
	}
	return mc, nil
}

// Source returns the named source, or nil.
func (mc *ModContent) Source(name string) *Source {
	return findSource(mc.Sources, name)
}

// Attribute returns the named catalog attribute.
func (mc *ModContent) Attribute(name string) (Attribute, bool) {
	for _, a := range mc.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

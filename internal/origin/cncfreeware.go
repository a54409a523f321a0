package origin

import (
	"github.com/openra-mobius/mobius-content/internal/checksum"
	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/manifest"
)

// ISOVolumesAttribute lists the labels of the found ISO volumes that
// contributed attributes.
const ISOVolumesAttribute = "ISOVolumes"

// ISOVolume describes one disc image the CncFreeware origin may mount.
type ISOVolume struct {
	Label      string
	Mount      string
	Attributes Attributes
}

// CncFreeware resolves the freeware quick-install package and optionally
// mounts original disc images found in an ISO directory.
type CncFreeware struct {
	Base
	Package         string
	PackageRequired bool
	PackageMount    string
	ISODirectory    string
	ISOVolumes      []ISOVolume
}

func newCncFreeware(n *manifest.Node, base Base) (Origin, error) {
	required, err := manifest.Bool(n, "PackageRequired", true)
	if err != nil {
		return nil, err
	}

	o := &CncFreeware{
		Base:            base,
		Package:         manifest.String(n, "Package", ""),
		PackageRequired: required,
		PackageMount:    manifest.String(n, "PackageMount", ""),
		ISODirectory:    manifest.String(n, "ISODirectory", ""),
	}

	if volumes := n.Get("ISOVolumes"); volumes != nil {
		for _, v := range volumes.Nodes {
			attrs, err := DecodeAttributes(v.Get("Attributes"))
			if err != nil {
				return nil, manifest.Within("ISOVolumes."+v.Key, err)
			}
			o.ISOVolumes = append(o.ISOVolumes, ISOVolume{
				Label:      v.Key,
				Mount:      manifest.String(v, "Mount", ""),
				Attributes: attrs,
			})
		}
	}
	return o, nil
}

func (o *CncFreeware) Resolve(env *Env, mode Mode) Result {
	logger := o.logger("CncFreeware")

	resolved := o.Package != "" && env.FS.Exists(o.Package)
	if resolved {
		resolved = o.resolvePackage(env, mode)
	}

	if mode == Mount && len(o.ISOVolumes) > 0 {
		found := o.foundVolumes(env)
		for _, v := range o.ISOVolumes {
			path, ok := found[v.Label]
			if !ok {
				continue
			}
			if err := env.FS.Mount(path, v.Mount); err != nil {
				logger.Warn("failed to mount iso volume", "volume", v.Label, "path", path, logging.KeyError, err)
			}
		}
	}

	if resolved || !o.PackageRequired {
		return Resolved
	}
	return NotResolved
}

func (o *CncFreeware) resolvePackage(env *Env, mode Mode) bool {
	logger := o.logger("CncFreeware")

	pkg, err := env.FS.OpenPackage(o.Package)
	if err != nil {
		logger.Debug("package unreadable", "package", o.Package, logging.KeyError, err)
		return false
	}
	if !checksum.Verify(pkg, o.IDFiles) {
		logger.Debug("identification files do not match", "package", o.Package)
		pkg.Close()
		return false
	}
	if mode != Mount {
		pkg.Close()
		return true
	}
	env.FS.MountPackage(pkg, o.PackageMount)
	return true
}

// foundVolumes scans the ISO directory. It yields nothing when the directory
// is unset or missing.
func (o *CncFreeware) foundVolumes(env *Env) map[string]string {
	if o.ISODirectory == "" || env.Locator == nil {
		return nil
	}
	dir := env.FS.Paths().ResolvePath(o.ISODirectory)
	if !dirExists(env.FS.Base(), dir) {
		return nil
	}
	return env.Locator.ISOVolumes(dir)
}

// Attributes unions the attributes of found volumes with the base
// attributes. When no found volume contributes, the base attributes are
// returned unchanged.
func (o *CncFreeware) Attributes(env *Env) Attributes {
	if len(o.ISOVolumes) == 0 {
		return o.Attrs.Clone()
	}

	found := o.foundVolumes(env)
	if len(found) == 0 {
		return o.Attrs.Clone()
	}

	merged := Attributes{}
	var labels []string
	for _, v := range o.ISOVolumes {
		if _, ok := found[v.Label]; !ok || len(v.Attributes) == 0 {
			continue
		}
		labels = append(labels, v.Label)
		for _, name := range v.Attributes.Names() {
			merged.add(name, v.Attributes[name]...)
		}
	}
	if len(merged) == 0 {
		return o.Attrs.Clone()
	}

	for _, name := range o.Attrs.Names() {
		merged.add(name, o.Attrs[name]...)
	}
	merged.add(ISOVolumesAttribute, labels...)
	return merged
}

// Package layout parses the top-level layout descriptor of a Data or
// Patch directory tree: the package list (ordering defines package id),
// each package's dependency edges and child superbundle references, and
// the layer's free-standing (shared) superbundles. It also resolves a
// CAS identifier to the physical cas_NN.cas file that backs it,
// applying Patch-shadows-Data precedence.
//
// Grounded in the same magic-validated-header-then-tag-stream shape as
// internal/container's TOC parsing (the layout descriptor is itself a
// TOC file), reusing internal/container/internal/tagstream directly
// rather than duplicating the framing logic.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/deploymenttheory/frostbite-extract/internal/cas"
	"github.com/deploymenttheory/frostbite-extract/internal/container"
	"github.com/deploymenttheory/frostbite-extract/internal/errs"
	"github.com/deploymenttheory/frostbite-extract/internal/tagstream"
)

// LayerID distinguishes the base Data layer from the overlay Patch
// layer. Patch entries shadow Data entries of the same name.
type LayerID uint8

const (
	LayerData  LayerID = 0
	LayerPatch LayerID = 1
)

func (l LayerID) String() string {
	if l == LayerPatch {
		return "patch"
	}
	return "data"
}

// LayoutFileName is the layout descriptor's file name at the root of
// each layer directory.
const LayoutFileName = "layout.toc"

// casFilePattern matches the cas_NN.cas physical file naming
// convention, NN a zero-padded decimal index starting at 01.
var casFilePattern = regexp.MustCompile(`^cas_(\d+)\.cas$`)

// Package is one installation package within a single layer. Index is
// its 0-based position in the layer's package list, which doubles as
// the package id embedded in every CAS identifier belonging to it.
type Package struct {
	Layer        LayerID
	Index        int
	Name         string
	Superbundles []string // relative paths, no extension
	Dependencies []string // package names, resolved within this layer
}

// Layer holds one layer's packages (ordered) and free-standing
// (shared) superbundles.
type Layer struct {
	ID               LayerID
	Root             string
	Packages         []Package
	FreeSuperbundles []string

	packageIndexByName map[string]int
}

// PackageByName looks up a package by name within this layer.
func (l *Layer) PackageByName(name string) (Package, bool) {
	i, ok := l.packageIndexByName[name]
	if !ok {
		return Package{}, false
	}
	return l.Packages[i], true
}

type casKey struct {
	layer LayerID
	pkg   uint32
	index uint32
}

// Resolver is the fully parsed layout: both layers (Patch optional)
// plus the derived CAS-identifier bit layout and physical path maps
// built by scanning each package directory for cas_NN.cas files.
type Resolver struct {
	Bits   cas.BitLayout
	layers map[LayerID]*Layer
	paths  map[casKey]string
}

// Layer returns the named layer, or nil if it was not loaded (the
// Patch layer is optional).
func (r *Resolver) Layer(id LayerID) *Layer {
	return r.layers[id]
}

// Layers returns whichever of Data/Patch were loaded, Patch first —
// the enumeration order graph construction requires.
func (r *Resolver) Layers() []*Layer {
	var out []*Layer
	if l, ok := r.layers[LayerPatch]; ok {
		out = append(out, l)
	}
	if l, ok := r.layers[LayerData]; ok {
		out = append(out, l)
	}
	return out
}

// ResolvePath implements cas.Resolver: it decodes id under the derived
// bit layout and returns the physical cas_NN.cas path, applying
// Patch-shadows-Data precedence. Precedence is applied to the
// (package id, cas index) pair directly rather than gating on the
// identifier's own layer bit: a
// Patch-layer CAS path is used whenever one exists for the decoded
// tuple, and the Data-layer path otherwise.
func (r *Resolver) ResolvePath(id cas.Identifier) (string, bool) {
	_, packageID, casIndex := r.Bits.Decode(id)
	if p, ok := r.paths[casKey{layer: LayerPatch, pkg: packageID, index: casIndex}]; ok {
		return p, true
	}
	if p, ok := r.paths[casKey{layer: LayerData, pkg: packageID, index: casIndex}]; ok {
		return p, true
	}
	return "", false
}

// Load parses the layout descriptor rooted at dataDir (required) and,
// if patchDir is non-empty, at patchDir, then derives the CAS
// identifier bit layout from the maximum package id and cas index
// observed while scanning both layers' package directories. Any error
// here is fatal to graph construction (phase 1).
func Load(dataDir, patchDir string) (*Resolver, error) {
	r := &Resolver{layers: map[LayerID]*Layer{}, paths: map[casKey]string{}}

	var maxPackageID, maxCasIndex uint32

	data, err := loadLayer(LayerData, dataDir, r.paths, &maxPackageID, &maxCasIndex)
	if err != nil {
		return nil, err
	}
	r.layers[LayerData] = data

	if patchDir != "" {
		patch, err := loadLayer(LayerPatch, patchDir, r.paths, &maxPackageID, &maxCasIndex)
		if err != nil {
			return nil, err
		}
		r.layers[LayerPatch] = patch
	}

	bits, err := cas.DeriveBitLayout(maxPackageID, maxCasIndex)
	if err != nil {
		return nil, err
	}
	r.Bits = bits
	return r, nil
}

func loadLayer(id LayerID, root string, paths map[casKey]string, maxPackageID, maxCasIndex *uint32) (*Layer, error) {
	data, err := os.ReadFile(filepath.Join(root, LayoutFileName))
	if err != nil {
		return nil, errs.WrapIO("read layout descriptor", err)
	}

	decoder, err := container.OpenTOC(data)
	if err != nil {
		return nil, err
	}

	layer := &Layer{ID: id, Root: root, packageIndexByName: map[string]int{}}

	_, err = tagstream.ReadObject(decoder, map[string]func(*tagstream.Decoder) error{
		"packages": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				pkg, err := parsePackageEntry(d, id, len(layer.Packages))
				if err != nil {
					return err
				}
				layer.packageIndexByName[pkg.Name] = len(layer.Packages)
				layer.Packages = append(layer.Packages, pkg)
				return nil
			})
		},
		"superbundles": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, func(ev tagstream.Event) error {
				if s, ok := ev.Value.(string); ok {
					layer.FreeSuperbundles = append(layer.FreeSuperbundles, s)
				}
				return nil
			}, nil)
		},
	})
	if err != nil {
		return nil, err
	}

	for i, pkg := range layer.Packages {
		if err := scanPackageCAS(root, pkg, uint32(i), paths, maxPackageID, maxCasIndex); err != nil {
			return nil, err
		}
	}

	return layer, nil
}

func parsePackageEntry(d *tagstream.Decoder, layerID LayerID, index int) (Package, error) {
	pkg := Package{Layer: layerID, Index: index}

	fields, err := tagstream.ReadObject(d, map[string]func(*tagstream.Decoder) error{
		"superbundles": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, func(ev tagstream.Event) error {
				if s, ok := ev.Value.(string); ok {
					pkg.Superbundles = append(pkg.Superbundles, s)
				}
				return nil
			}, nil)
		},
		"dependencies": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, func(ev tagstream.Event) error {
				if s, ok := ev.Value.(string); ok {
					pkg.Dependencies = append(pkg.Dependencies, s)
				}
				return nil
			}, nil)
		},
	})
	if err != nil {
		return Package{}, err
	}
	pkg.Name, _ = fields["name"].(string)
	return pkg, nil
}

// scanPackageCAS walks a package's directory on disk for cas_NN.cas
// files; the layout descriptor names packages but the physical CAS
// files follow a fixed naming convention rather than being enumerated
// in the tag stream themselves.
func scanPackageCAS(root string, pkg Package, packageID uint32, paths map[casKey]string, maxPackageID, maxCasIndex *uint32) error {
	dir := filepath.Join(root, filepath.FromSlash(pkg.Name))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// The package folder may be entirely absent (e.g. a
			// package present only in the other layer); individual
			// part reads against it resolve to BundleUnavailable.
			return nil
		}
		return errs.WrapIO("scan package directory", err)
	}

	if packageID > *maxPackageID {
		*maxPackageID = packageID
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := casFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, convErr := strconv.ParseUint(m[1], 10, 32)
		if convErr != nil {
			continue
		}
		index := uint32(n)
		if index > *maxCasIndex {
			*maxCasIndex = index
		}
		paths[casKey{layer: pkg.Layer, pkg: packageID, index: index}] = filepath.Join(dir, entry.Name())
	}
	return nil
}

// SuperbundlePaths returns the on-disk TOC and SB paths for a
// superbundle named rel within this layer. The SB path may not exist
// (TOC-only superbundle); callers probe it with os.Stat/os.ReadFile.
func (l *Layer) SuperbundlePaths(rel string) (tocPath, sbPath string) {
	base := filepath.Join(l.Root, filepath.FromSlash(rel))
	return base + ".toc", base + ".sb"
}

// String renders a package identity for diagnostics.
func (p Package) String() string {
	return fmt.Sprintf("%s/%s[%d]", p.Layer, p.Name, p.Index)
}

// SortedNames returns a layer's package names sorted alphabetically
// (not in declared order; Packages keeps the declared order).
func (l *Layer) SortedNames() []string {
	names := make([]string, len(l.Packages))
	for i, p := range l.Packages {
		names[i] = p.Name
	}
	sort.Strings(names)
	return names
}

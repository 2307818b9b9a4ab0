// Package graph assembles the immutable, in-memory object graph that
// relates installation packages to superbundles, bundles, and parts.
// Construction proceeds through four barrier phases; once Build
// returns, no exported method mutates the graph, so any number of
// extraction workers may query it concurrently.
package graph

import (
	"github.com/deploymenttheory/frostbite-extract/internal/cas"
	"github.com/deploymenttheory/frostbite-extract/internal/container"
	"github.com/deploymenttheory/frostbite-extract/internal/layout"
)

// PartKind discriminates the four part categories the output sink
// interface names.
type PartKind int

const (
	PartEBX PartKind = iota
	PartRES
	PartChunk
	PartTOCResource
)

func (k PartKind) String() string {
	switch k {
	case PartEBX:
		return "ebx"
	case PartRES:
		return "res"
	case PartChunk:
		return "chunk"
	case PartTOCResource:
		return "toc"
	default:
		return "unknown"
	}
}

// Part is the flattened, kind-tagged view of a part used both as the
// value in the by-SHA1 lookup index and as a unit of work for the
// extraction driver's deterministic traversal.
type Part struct {
	Kind           PartKind
	Identity       string // logical path (EBX/RES), uid-hex (CHUNK), or sha1-hex (TOC resource)
	SHA1           [20]byte
	CASID          cas.Identifier
	CASOffset      uint64
	CompressedSize uint64

	// UncompressedSize is only meaningful when HasUncompressedSize is
	// true (EBX/RES); CHUNK and TOC-resource parts terminate their CAS
	// read on consumed-compressed-bytes instead.
	UncompressedSize    uint64
	HasUncompressedSize bool

	ContentType uint32
	Meta        []byte
	Flags       uint32

	Superbundle string
	Bundle      string // empty for a free-standing TOC resource
}

// Bundle is a named grouping of parts inside a superbundle. Unavailable
// mirrors container.Bundle.Unavailable: the bundle is kept, not
// dropped, when its SB byte range could not be resolved.
type Bundle struct {
	Superbundle string
	Name        string
	EBX         []container.EBXPart
	RES         []container.RESPart
	Chunks      []container.ChunkPart
	Unavailable bool
}

// Superbundle is a named collection of bundles. Split superbundles are
// owned by exactly one Package; shared superbundles have Owner == nil.
// Unavailable is set when this superbundle's TOC is absent from its
// layer, its SB companion is malformed, or its TOC body fails to
// decode — see Build's phase-boundary note.
type Superbundle struct {
	Name         string
	Split        bool
	Owner        *Package
	Bundles      []*Bundle
	TOCResources []container.TOCResource
	Unavailable  bool
}

// Package is one installation package, resolved into the superbundles
// it owns. Index/Dependencies/Layer mirror layout.Package.
type Package struct {
	Layer        layout.LayerID
	Index        int
	Name         string
	Dependencies []string
	Superbundles []*Superbundle
}

type bundleKey struct {
	superbundle string
	name        string
}

// PartSource is the narrow interface the extraction driver depends on:
// a deterministic, flattened view of every part to extract. *Graph
// satisfies it directly; internal/cache's reconstructed snapshot
// satisfies it too, so a cache hit can feed the driver without
// repeating phases 2-4 of Build.
type PartSource interface {
	Walk() []Part
}

// Graph is the fully resolved, read-only asset graph.
type Graph struct {
	layoutResolver *layout.Resolver

	packages     []*Package     // topological order, Patch layer first
	superbundles []*Superbundle // layer-level free-standing superbundles, Patch layer first, declared order
	bundleByKey  map[bundleKey]*Bundle
	partBySHA1   map[[20]byte]Part
}

// Resolver exposes the layout resolver so callers can construct a
// cas.Reader against it (cas.Reader depends only on the narrow
// cas.Resolver interface, which *layout.Resolver satisfies).
func (g *Graph) Resolver() *layout.Resolver {
	return g.layoutResolver
}

// Packages returns every package in dependency-topological order,
// Patch layer first.
func (g *Graph) Packages() []*Package {
	return g.packages
}

// Superbundles returns the free-standing (shared) superbundles declared
// at layer level, Patch layer first and in declared order within a
// layer. Superbundles listed only by a package are not included; they
// are reached through Packages().
func (g *Graph) Superbundles() []*Superbundle {
	return g.superbundles
}

// Bundle looks up a bundle by (superbundle name, bundle name).
func (g *Graph) Bundle(superbundle, name string) (*Bundle, bool) {
	b, ok := g.bundleByKey[bundleKey{superbundle: superbundle, name: name}]
	return b, ok
}

// PartBySHA1 looks up any EBX, RES, CHUNK, or TOC-resource part by its
// 20-byte content identifier.
func (g *Graph) PartBySHA1(sha1 [20]byte) (Part, bool) {
	p, ok := g.partBySHA1[sha1]
	return p, ok
}

// Walk returns every part in the graph in deterministic order:
// packages in topological order, each package's superbundles and
// bundles in declared order, parts within a bundle in EBX -> RES ->
// CHUNKS order, TOC resources last per superbundle.
// Shared superbundles (owned by no package) are walked after every
// package's split superbundles.
func (g *Graph) Walk() []Part {
	var out []Part
	seen := make(map[string]bool)

	appendSuperbundle := func(sb *Superbundle) {
		if seen[sb.Name] {
			return
		}
		seen[sb.Name] = true
		for _, b := range sb.Bundles {
			for _, p := range b.EBX {
				out = append(out, ebxPart(sb.Name, b.Name, p))
			}
			for _, p := range b.RES {
				out = append(out, resPart(sb.Name, b.Name, p))
			}
			for _, p := range b.Chunks {
				out = append(out, chunkPart(sb.Name, b.Name, p))
			}
		}
		for _, r := range sb.TOCResources {
			out = append(out, tocResourcePart(sb.Name, r))
		}
	}

	for _, pkg := range g.packages {
		for _, sb := range pkg.Superbundles {
			appendSuperbundle(sb)
		}
	}
	for _, sb := range g.superbundles {
		appendSuperbundle(sb)
	}
	return out
}

package graph

import (
	"os"

	"github.com/deploymenttheory/frostbite-extract/internal/container"
	"github.com/deploymenttheory/frostbite-extract/internal/layout"
	"github.com/deploymenttheory/frostbite-extract/internal/obslog"
)

// Build runs the four barrier phases of graph construction: (1) parse
// the layout (already done by the caller — resolver is the phase-1
// result), (2) parse every TOC referenced by the layout, (3) parse
// every SB companion, (4) link cross-references. Phases 2-3 are
// performed together per superbundle below (the tag-stream decoder
// resolves TOC-side bundle entries and their SB cross-links in one
// pass). Build aborts only when a TOC file that exists fails its magic
// or header check (OpenTOC), or when reading a TOC or SB file fails
// for a reason other than the file being absent. Any error while
// decoding a TOC body, whether in its inline bundle entries or in an
// SB range it cross-links to, does not abort: it demotes that
// superbundle to Unavailable, as do a missing TOC file and a
// malformed SB companion.
func Build(resolver *layout.Resolver) (*Graph, error) {
	g := &Graph{
		layoutResolver: resolver,
		bundleByKey:    map[bundleKey]*Bundle{},
		partBySHA1:     map[[20]byte]Part{},
	}

	built := map[string]*Superbundle{} // dedup by name, Patch layer first wins

	for _, l := range resolver.Layers() {
		for _, name := range l.FreeSuperbundles {
			if _, ok := built[name]; ok {
				continue
			}
			sb, err := buildSuperbundle(l, name, false)
			if err != nil {
				return nil, err
			}
			built[name] = sb
			g.superbundles = append(g.superbundles, sb)
		}
	}

	for _, l := range resolver.Layers() {
		pkgs := topoSort(l.Packages)
		for i := range pkgs {
			lp := pkgs[i]
			pkg := &Package{
				Layer:        lp.Layer,
				Index:        lp.Index,
				Name:         lp.Name,
				Dependencies: lp.Dependencies,
			}
			for _, name := range lp.Superbundles {
				sb, ok := built[name]
				if !ok {
					var err error
					sb, err = buildSuperbundle(l, name, true)
					if err != nil {
						return nil, err
					}
					built[name] = sb
				}
				sb.Split = true
				sb.Owner = pkg
				pkg.Superbundles = append(pkg.Superbundles, sb)
			}
			g.packages = append(g.packages, pkg)
		}
	}

	for _, sb := range built {
		linkSuperbundle(g, sb)
	}

	return g, nil
}

// buildSuperbundle parses one superbundle's TOC and, if present, SB
// companion, rooted at layer l. A missing TOC file (the superbundle is
// declared in the other layer only, or the reference is to a shadowed
// name not physically present here) is non-fatal: it demotes the
// superbundle to Unavailable exactly like a phase-3 failure would.
func buildSuperbundle(l *layout.Layer, name string, split bool) (*Superbundle, error) {
	tocPath, sbPath := l.SuperbundlePaths(name)

	tocBytes, err := os.ReadFile(tocPath)
	if err != nil {
		if os.IsNotExist(err) {
			obslog.LogWarn("superbundle TOC not present in layer", map[string]interface{}{
				"superbundle": name, "layer": l.ID.String(),
			})
			return &Superbundle{Name: name, Split: split, Unavailable: true}, nil
		}
		return nil, err
	}

	tocDecoder, err := container.OpenTOC(tocBytes)
	if err != nil {
		// A malformed magic/header on a file that does exist is a
		// structural (phase 2) failure: fatal.
		return nil, err
	}

	var sbBody []byte
	sbPresent := false
	if raw, err := os.ReadFile(sbPath); err == nil {
		if _, err := container.OpenSB(raw); err != nil {
			obslog.LogWarn("superbundle SB companion malformed, demoting to unavailable", map[string]interface{}{
				"superbundle": name, "error": err.Error(),
			})
			return &Superbundle{Name: name, Split: split, Unavailable: true}, nil
		}
		// OpenSB validates the framing; ParseSuperbundleTOC's byte-range
		// cross-links are offsets into the body past the 4-byte magic.
		sbBody = raw[4:]
		sbPresent = true
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	parsed, err := container.ParseSuperbundleTOC(tocDecoder, sbBody, sbPresent)
	if err != nil {
		obslog.LogWarn("superbundle body parse failed, demoting to unavailable", map[string]interface{}{
			"superbundle": name, "error": err.Error(),
		})
		return &Superbundle{Name: name, Split: split, Unavailable: true}, nil
	}

	sb := &Superbundle{
		Name:         name,
		Split:        split,
		TOCResources: parsed.TOCResources,
	}
	for i := range parsed.Bundles {
		b := parsed.Bundles[i]
		sb.Bundles = append(sb.Bundles, &Bundle{
			Superbundle: name,
			Name:        b.Name,
			EBX:         b.EBX,
			RES:         b.RES,
			Chunks:      b.Chunks,
			Unavailable: b.Unavailable,
		})
	}
	return sb, nil
}

func linkSuperbundle(g *Graph, sb *Superbundle) {
	for _, b := range sb.Bundles {
		g.bundleByKey[bundleKey{superbundle: sb.Name, name: b.Name}] = b
		for _, p := range b.EBX {
			g.partBySHA1[p.SHA1] = ebxPart(sb.Name, b.Name, p)
		}
		for _, p := range b.RES {
			g.partBySHA1[p.SHA1] = resPart(sb.Name, b.Name, p)
		}
		for _, p := range b.Chunks {
			g.partBySHA1[p.SHA1] = chunkPart(sb.Name, b.Name, p)
		}
	}
	for _, r := range sb.TOCResources {
		g.partBySHA1[r.SHA1] = tocResourcePart(sb.Name, r)
	}
}

// topoSort orders a layer's packages so every dependency precedes its
// dependents, via an iterative Kahn's algorithm over the Dependencies
// edges the layout resolver recorded. Dependency edges are exposed for
// diagnostics and deterministic traversal order but not enforced — a
// cycle falls back to appending the unresolved remainder in declared
// order rather than failing.
func topoSort(pkgs []layout.Package) []layout.Package {
	byName := make(map[string]int, len(pkgs))
	for i, p := range pkgs {
		byName[p.Name] = i
	}

	indegree := make([]int, len(pkgs))
	dependents := make([][]int, len(pkgs))
	for i, p := range pkgs {
		for _, dep := range p.Dependencies {
			j, ok := byName[dep]
			if !ok {
				continue
			}
			dependents[j] = append(dependents[j], i)
			indegree[i]++
		}
	}

	queue := make([]int, 0, len(pkgs))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(pkgs))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, m := range dependents[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	if len(order) < len(pkgs) {
		seen := make(map[int]bool, len(order))
		for _, i := range order {
			seen[i] = true
		}
		for i := range pkgs {
			if !seen[i] {
				order = append(order, i)
			}
		}
	}

	out := make([]layout.Package, len(order))
	for i, idx := range order {
		out[i] = pkgs[idx]
	}
	return out
}

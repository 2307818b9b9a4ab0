package graph

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/deploymenttheory/frostbite-extract/internal/container"
	"github.com/deploymenttheory/frostbite-extract/internal/layout"
	"github.com/deploymenttheory/frostbite-extract/internal/tagstream"
)

func varuint(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			break
		}
	}
	return out
}

func cstr(s string) []byte { return append([]byte(s), 0) }

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func buildBody(records ...[]byte) []byte {
	var body []byte
	for _, r := range records {
		body = append(body, r...)
	}
	return append(body, byte(tagstream.TypeEnd))
}

func namedContainer(typeCode tagstream.TypeCode, name string, body []byte) []byte {
	rec := []byte{byte(typeCode)}
	rec = append(rec, cstr(name)...)
	rec = append(rec, varuint(uint64(len(body)))...)
	return append(rec, body...)
}

func unnamedContainer(typeCode tagstream.TypeCode, body []byte) []byte {
	rec := []byte{byte(typeCode)}
	rec = append(rec, varuint(uint64(len(body)))...)
	return append(rec, body...)
}

func strField(name, v string) []byte {
	rec := append([]byte{byte(tagstream.TypeString)}, cstr(name)...)
	rec = append(rec, varuint(uint64(len(v)))...)
	return append(rec, []byte(v)...)
}

func strListItem(v string) []byte {
	rec := []byte{byte(tagstream.TypeString)}
	rec = append(rec, varuint(uint64(len(v)))...)
	return append(rec, []byte(v)...)
}

func u32Field(name string, v uint32) []byte {
	return append(append([]byte{byte(tagstream.TypeUint32)}, cstr(name)...), le32(v)...)
}

func u64Field(name string, v uint64) []byte {
	return append(append([]byte{byte(tagstream.TypeUint64)}, cstr(name)...), le64(v)...)
}

func sha1Field(name string, v byte) []byte {
	rec := append([]byte{byte(tagstream.TypeSHA1)}, cstr(name)...)
	return append(rec, bytes.Repeat([]byte{v}, 20)...)
}

func ebxBody(casID uint32, path string) []byte {
	return buildBody(
		sha1Field("sha1", byte(casID+1)),
		u32Field("casId", casID),
		u64Field("casOffset", 0),
		u64Field("compressedSize", 16),
		u32Field("flags", 0),
		strField("path", path),
		u64Field("uncompressedSize", 32),
	)
}

func tocFile(body []byte) []byte {
	var buf bytes.Buffer
	buf.Write(be32(container.TOCMagic))
	buf.Write(bytes.Repeat([]byte{0}, container.TOCBodyOffset-4))
	buf.Write(body)
	return buf.Bytes()
}

func writeTOCOnlySuperbundle(t *testing.T, root, rel string, bundles [][]byte) {
	t.Helper()
	body := buildBody(
		namedContainer(tagstream.TypeList, "bundles", buildBody(bundles...)),
		namedContainer(tagstream.TypeList, "tocResources", buildBody()),
	)
	path := filepath.Join(root, rel+".toc")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, tocFile(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeLayoutDescriptor(t *testing.T, root string, packages []layout.Package, free []string) {
	t.Helper()
	var pkgItems, freeItems [][]byte
	for _, p := range packages {
		var depItems, sbItems [][]byte
		for _, d := range p.Dependencies {
			depItems = append(depItems, strListItem(d))
		}
		for _, s := range p.Superbundles {
			sbItems = append(sbItems, strListItem(s))
		}
		pkgBody := buildBody(
			strField("name", p.Name),
			namedContainer(tagstream.TypeList, "dependencies", buildBody(depItems...)),
			namedContainer(tagstream.TypeList, "superbundles", buildBody(sbItems...)),
		)
		pkgItems = append(pkgItems, unnamedContainer(tagstream.TypeObject, pkgBody))
	}
	for _, s := range free {
		freeItems = append(freeItems, strListItem(s))
	}
	body := buildBody(
		namedContainer(tagstream.TypeList, "packages", buildBody(pkgItems...)),
		namedContainer(tagstream.TypeList, "superbundles", buildBody(freeItems...)),
	)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, layout.LayoutFileName), tocFile(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildResolvesPackageSuperbundlesAndBundles(t *testing.T) {
	root := t.TempDir()

	writeLayoutDescriptor(t, root, []layout.Package{
		{Name: "core", Superbundles: []string{"core/main"}},
	}, []string{"shared/ui"})

	heroEntry := unnamedContainer(tagstream.TypeObject, buildBody(
		strField("name", "bundle/hero"),
		namedContainer(tagstream.TypeList, "ebx", buildBody(
			unnamedContainer(tagstream.TypeObject, ebxBody(1, "characters/hero")),
		)),
	))
	writeTOCOnlySuperbundle(t, root, "core/main", [][]byte{heroEntry})
	writeTOCOnlySuperbundle(t, root, "shared/ui", nil) // S1: empty superbundle

	resolver, err := layout.Load(root, "")
	if err != nil {
		t.Fatalf("layout.Load: %v", err)
	}
	g, err := Build(resolver)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(g.Packages()) != 1 || g.Packages()[0].Name != "core" {
		t.Fatalf("unexpected packages: %+v", g.Packages())
	}
	if len(g.Packages()[0].Superbundles) != 1 {
		t.Fatalf("expected core to own 1 superbundle")
	}

	shared := g.Superbundles()
	if len(shared) != 1 || shared[0].Name != "shared/ui" || len(shared[0].Bundles) != 0 {
		t.Fatalf("expected 1 empty shared superbundle, got %+v", shared)
	}

	bundle, ok := g.Bundle("core/main", "bundle/hero")
	if !ok || len(bundle.EBX) != 1 || bundle.EBX[0].Path != "characters/hero" {
		t.Fatalf("unexpected bundle lookup: %+v ok=%v", bundle, ok)
	}

	part, ok := g.PartBySHA1(bundle.EBX[0].SHA1)
	if !ok || part.Kind != PartEBX || part.Identity != "characters/hero" {
		t.Fatalf("unexpected SHA1 lookup: %+v ok=%v", part, ok)
	}

	walked := g.Walk()
	if len(walked) != 1 {
		t.Fatalf("expected 1 part from Walk, got %d: %+v", len(walked), walked)
	}
}

func TestBuildDemotesMissingSuperbundleWithoutAborting(t *testing.T) {
	root := t.TempDir()
	writeLayoutDescriptor(t, root, []layout.Package{
		{Name: "core", Superbundles: []string{"core/absent"}},
	}, nil)
	// Deliberately do not write core/absent.toc.

	resolver, err := layout.Load(root, "")
	if err != nil {
		t.Fatalf("layout.Load: %v", err)
	}
	g, err := Build(resolver)
	if err != nil {
		t.Fatalf("Build should not abort on a missing superbundle TOC: %v", err)
	}

	pkg := g.Packages()[0]
	if len(pkg.Superbundles) != 1 || !pkg.Superbundles[0].Unavailable {
		t.Fatalf("expected the missing superbundle to be marked unavailable: %+v", pkg.Superbundles)
	}
	if len(g.Walk()) != 0 {
		t.Fatalf("expected no parts from an unavailable superbundle")
	}
}

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	pkgs := []layout.Package{
		{Name: "dlc", Dependencies: []string{"core"}},
		{Name: "core"},
	}
	sorted := topoSort(pkgs)
	if sorted[0].Name != "core" || sorted[1].Name != "dlc" {
		t.Fatalf("expected core before dlc, got %+v", sorted)
	}
}

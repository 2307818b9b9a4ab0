// Package cache implements an optional on-disk graph cache: a single
// file holding the flattened part list a resolved graph.Graph would
// otherwise require re-parsing every TOC and SB companion to
// reproduce. Keyed by a hash of the layout descriptor's bytes, so
// edits to either layer invalidate a stale cache automatically. Lives
// outside internal/graph itself (graph.Graph stays a pure in-memory,
// build-only type) and is only ever invoked from cmd/extract.go.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/deploymenttheory/frostbite-extract/internal/cas"
	"github.com/deploymenttheory/frostbite-extract/internal/errs"
	"github.com/deploymenttheory/frostbite-extract/internal/graph"
	"github.com/fxamacker/cbor/v2"
)

// partRecord is graph.Part flattened into CBOR-friendly scalar fields;
// graph.Part's fixed-size byte arrays are hex-encoded so the wire
// format doesn't depend on fxamacker/cbor's array-vs-bytestring
// handling of Go array types.
type partRecord struct {
	Kind                int    `cbor:"1,keyasint"`
	Identity            string `cbor:"2,keyasint"`
	SHA1Hex             string `cbor:"3,keyasint"`
	CASID               uint32 `cbor:"4,keyasint"`
	CASOffset           uint64 `cbor:"5,keyasint"`
	CompressedSize      uint64 `cbor:"6,keyasint"`
	UncompressedSize    uint64 `cbor:"7,keyasint"`
	HasUncompressedSize bool   `cbor:"8,keyasint"`
	ContentType         uint32 `cbor:"9,keyasint"`
	Meta                []byte `cbor:"10,keyasint"`
	Flags               uint32 `cbor:"11,keyasint"`
	Superbundle         string `cbor:"12,keyasint"`
	Bundle              string `cbor:"13,keyasint"`
}

// document is the on-disk cache format: the layout hash it was built
// from, plus every part the graph's Walk() produced, in order.
type document struct {
	LayoutHash string       `cbor:"1,keyasint"`
	Parts      []partRecord `cbor:"2,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: cbor encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cache: cbor decoder initialization failed: " + err.Error())
	}
}

// HashLayoutDescriptors returns the cache key for a run: the SHA-256
// of the concatenated layout.toc bytes of every layer root given (in
// order), hex-encoded.
func HashLayoutDescriptors(layoutDescriptorPaths ...string) (string, error) {
	h := sha256.New()
	for _, p := range layoutDescriptorPaths {
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return "", errs.WrapIO("hash layout descriptor", err)
		}
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Snapshot is a reconstructed PartSource satisfying graph.PartSource,
// returned by Load on a cache hit.
type Snapshot struct {
	parts []graph.Part
}

// Walk implements graph.PartSource.
func (s *Snapshot) Walk() []graph.Part {
	return s.parts
}

// Save writes g's flattened part list to path under the given layout
// hash, overwriting any existing file.
func Save(path, layoutHash string, g *graph.Graph) error {
	doc := document{LayoutHash: layoutHash}
	for _, p := range g.Walk() {
		doc.Parts = append(doc.Parts, partRecord{
			Kind:                int(p.Kind),
			Identity:            p.Identity,
			SHA1Hex:             hex.EncodeToString(p.SHA1[:]),
			CASID:               uint32(p.CASID),
			CASOffset:           p.CASOffset,
			CompressedSize:      p.CompressedSize,
			UncompressedSize:    p.UncompressedSize,
			HasUncompressedSize: p.HasUncompressedSize,
			ContentType:         p.ContentType,
			Meta:                p.Meta,
			Flags:               p.Flags,
			Superbundle:         p.Superbundle,
			Bundle:              p.Bundle,
		})
	}

	data, err := encMode.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads path and returns a Snapshot if its stored layout hash
// matches layoutHash. A missing file, a decode failure, or a hash
// mismatch are all reported as a clean cache miss (ok == false), never
// an error: a stale or absent cache always falls back to a full graph
// build.
func Load(path, layoutHash string) (*Snapshot, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var doc document
	if err := decMode.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	if doc.LayoutHash != layoutHash {
		return nil, false
	}

	snap := &Snapshot{parts: make([]graph.Part, 0, len(doc.Parts))}
	for _, r := range doc.Parts {
		shaBytes, err := hex.DecodeString(r.SHA1Hex)
		if err != nil || len(shaBytes) != 20 {
			return nil, false
		}
		var sha1 [20]byte
		copy(sha1[:], shaBytes)

		snap.parts = append(snap.parts, graph.Part{
			Kind:                graph.PartKind(r.Kind),
			Identity:            r.Identity,
			SHA1:                sha1,
			CASID:               cas.Identifier(r.CASID),
			CASOffset:           r.CASOffset,
			CompressedSize:      r.CompressedSize,
			UncompressedSize:    r.UncompressedSize,
			HasUncompressedSize: r.HasUncompressedSize,
			ContentType:         r.ContentType,
			Meta:                r.Meta,
			Flags:               r.Flags,
			Superbundle:         r.Superbundle,
			Bundle:              r.Bundle,
		})
	}
	return snap, true
}

// Package cas resolves CAS identifiers to physical files and streams
// compressed byte ranges out of them through the chunked decompression
// pipeline.
package cas

import (
	"math/bits"

	"github.com/deploymenttheory/frostbite-extract/internal/errs"
)

// Identifier is the 32-bit CAS locator embedded in every part record:
// a layer id, a package id (index into that layer's package list), and
// a 1-based CAS file index.
type Identifier uint32

// BitLayout pins down how an Identifier's 32 bits split across layer
// id (always 1 bit — Data or Patch), package id, and CAS file index.
// The source material only describes the fields by name; concrete
// widths are derived once, at graph-build time, from the maximum
// package id and CAS index actually observed in the layout descriptor,
// and then held fixed for the rest of the run.
type BitLayout struct {
	PackageBits uint
	IndexBits   uint
}

const layerBits = 1

// DeriveBitLayout picks the minimal bit widths that can represent the
// largest package id and CAS index seen while parsing the layout. It
// fails with FormatMismatch if no split fits in the remaining 31 bits.
func DeriveBitLayout(maxPackageID, maxCasIndex uint32) (BitLayout, error) {
	packageBits := uint(bits.Len32(maxPackageID))
	indexBits := uint(bits.Len32(maxCasIndex))
	if packageBits == 0 {
		packageBits = 1
	}
	if indexBits == 0 {
		indexBits = 1
	}
	if layerBits+packageBits+indexBits > 32 {
		return BitLayout{}, errs.FormatMismatch
	}
	return BitLayout{PackageBits: packageBits, IndexBits: indexBits}, nil
}

// Decode splits id into its three fields under this layout.
func (l BitLayout) Decode(id Identifier) (layerID uint8, packageID uint32, casIndex uint32) {
	v := uint32(id)
	indexMask := uint32(1)<<l.IndexBits - 1
	packageMask := uint32(1)<<l.PackageBits - 1

	casIndex = v & indexMask
	v >>= l.IndexBits
	packageID = v & packageMask
	v >>= l.PackageBits
	layerID = uint8(v & 0x1)
	return
}

// Encode packs the three fields into an Identifier under this layout,
// failing with FormatMismatch if any field overflows its assigned
// width (property 3: Encode(Decode(id)) == id for every identifier
// that was valid under this layout in the first place).
func (l BitLayout) Encode(layerID uint8, packageID, casIndex uint32) (Identifier, error) {
	if layerID > 1 {
		return 0, errs.FormatMismatch
	}
	if packageID>>l.PackageBits != 0 {
		return 0, errs.FormatMismatch
	}
	if casIndex>>l.IndexBits != 0 {
		return 0, errs.FormatMismatch
	}
	v := uint32(layerID)
	v = v<<l.PackageBits | packageID
	v = v<<l.IndexBits | casIndex
	return Identifier(v), nil
}

// Package compression implements the chunked decompression pipeline
// described by the format: a compressed byte range is a sequence of
// fixed-shape chunk headers followed by a compression-code-dependent
// payload. The concrete external decompression library the real game
// uses (Oodle) has no Go binding and is proprietary, so the 0x1170
// path is implemented against github.com/pierrec/lz4/v4 — a real,
// actively used block-compression library — behind the same
// byte-in/byte-out Decompressor contract the chunk format describes.
// See DESIGN.md for the substitution rationale. The LZ4 package is
// pure Go and adds no platform constraint of its own.
package compression

import (
	"fmt"

	"github.com/deploymenttheory/frostbite-extract/internal/errs"
	"github.com/pierrec/lz4/v4"
)

// Compression codes observed in this title's chunk headers.
const (
	CodeOodleBlock  uint16 = 0x1170 // compressed via the external library
	CodeStoredA     uint16 = 0x0070 // payload stored uncompressed
	CodeStoredB     uint16 = 0x0071 // payload stored uncompressed (handled exactly like 0x0070; what distinguishes the two is unknown)
	chunkUncompSize        = 0x10000
)

// Decompressor maps a compressed payload plus its declared
// uncompressed size to the raw bytes. Production code satisfies this
// with lz4Decompressor; tests substitute a fake to exercise error
// paths without needing a real compressed fixture.
type Decompressor interface {
	Decompress(compressed []byte, uncompressedSize int) ([]byte, error)
}

// lz4Decompressor adapts github.com/pierrec/lz4/v4's block codec to
// the Decompressor contract. It requires no process-wide
// initialization and is safe for concurrent use by multiple goroutines
// (each call allocates its own destination buffer), unlike the real
// Oodle library, which may require serialization behind a single mutex
// if its concrete build is not reentrant.
type lz4Decompressor struct{}

// NewLZ4Decompressor returns the production Decompressor used for
// compression code 0x1170.
func NewLZ4Decompressor() Decompressor {
	return lz4Decompressor{}
}

func (lz4Decompressor) Decompress(compressed []byte, uncompressedSize int) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.DecompressorError, err)
	}
	if n != uncompressedSize {
		return nil, errs.DecompressorError
	}
	return dst, nil
}

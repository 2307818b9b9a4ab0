package compression

import (
	"github.com/deploymenttheory/frostbite-extract/internal/binreader"
	"github.com/deploymenttheory/frostbite-extract/internal/errs"
)

const chunkHeaderSize = 8

// TargetKind selects which of the two explicit termination conditions
// the chunk pipeline uses. Exactly one must be chosen per read — an
// ambiguous state (neither, or both) is a programming error in the
// caller, not a format error, so callers build a Target with
// TargetUncompressedSize or TargetCompressedSize.
type TargetKind int

const (
	targetUncompressed TargetKind = iota
	targetCompressed
)

// Target pins down when DecompressRange stops reading chunks: either
// once it has emitted a known total of uncompressed bytes (the normal
// case, when the part's uncompressed size is known up front), or once
// it has consumed a known total of compressed bytes from the stream
// (used for TOC resources and chunk parts, whose uncompressed size is
// not pre-declared).
type Target struct {
	kind  TargetKind
	value uint64
}

// TargetUncompressedSize stops the pipeline once exactly n
// uncompressed bytes have been emitted.
func TargetUncompressedSize(n uint64) Target {
	return Target{kind: targetUncompressed, value: n}
}

// TargetCompressedSize stops the pipeline once exactly n bytes
// (including every chunk header) have been consumed from the stream.
func TargetCompressedSize(n uint64) Target {
	return Target{kind: targetCompressed, value: n}
}

// DecompressRange reads chunks from r until Target's condition is met,
// decompressing each against dec, and returns the concatenated
// uncompressed bytes. Any deviation from the declared size — running
// out of chunks early, overshooting, or a malformed chunk — is fatal
// for the containing part.
func DecompressRange(r *binreader.Reader, target Target, dec Decompressor) ([]byte, error) {
	var out []byte
	var consumedCompressed uint64

	for !satisfied(target, out, consumedCompressed) {
		uncompField, err := r.ReadUint16BE()
		if err != nil {
			return nil, errs.Truncated
		}
		code, err := r.ReadUint16()
		if err != nil {
			return nil, errs.Truncated
		}
		compSize, err := r.ReadUint32BE()
		if err != nil {
			return nil, errs.Truncated
		}

		actualUncomp := uint32(uncompField)
		if actualUncomp == 0 {
			actualUncomp = chunkUncompSize
		}

		payload, err := r.ReadBytes(int(compSize))
		if err != nil {
			return nil, errs.Truncated
		}
		consumedCompressed += chunkHeaderSize + uint64(compSize)

		switch code {
		case CodeOodleBlock:
			decoded, err := dec.Decompress(payload, int(actualUncomp))
			if err != nil {
				return nil, err
			}
			out = append(out, decoded...)
		case CodeStoredA, CodeStoredB:
			if compSize != actualUncomp {
				return nil, errs.FormatMismatch
			}
			out = append(out, payload...)
		default:
			return nil, &errs.UnknownCompressionError{Code: code}
		}

		if actualUncomp != chunkUncompSize && !satisfied(target, out, consumedCompressed) {
			// A short chunk may only be the final chunk of a stream;
			// if the pipeline isn't done yet, the stream is malformed.
			return nil, errs.FormatMismatch
		}
	}

	if overshot(target, out, consumedCompressed) {
		return nil, errs.FormatMismatch
	}

	return out, nil
}

func satisfied(target Target, out []byte, consumedCompressed uint64) bool {
	switch target.kind {
	case targetUncompressed:
		return uint64(len(out)) >= target.value
	case targetCompressed:
		return consumedCompressed >= target.value
	default:
		return true
	}
}

func overshot(target Target, out []byte, consumedCompressed uint64) bool {
	switch target.kind {
	case targetUncompressed:
		return uint64(len(out)) != target.value
	case targetCompressed:
		return consumedCompressed != target.value
	default:
		return false
	}
}

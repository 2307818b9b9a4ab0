// Package container parses TOC and SB files: the magic-framed header
// that wraps every such file, and the tag-stream bodies describing
// bundles, parts, and free-standing TOC resources.
package container

import (
	"github.com/deploymenttheory/frostbite-extract/internal/binreader"
	"github.com/deploymenttheory/frostbite-extract/internal/errs"
	"github.com/deploymenttheory/frostbite-extract/internal/tagstream"
)

// Magic numbers, compared big-endian, per the format.
const (
	TOCMagic        uint32 = 0x00D1CE01
	TOCWrapperMagic uint32 = 0x00000030
	SBMagic         uint32 = 0x00000020

	// TOCBodyOffset is where the tag stream body begins in a TOC file;
	// the header region between offset 0x00 and here is not modeled,
	// only the leading magic at 0 and the start of the body are
	// asserted.
	TOCBodyOffset = 0x22C
)

// OpenTOC validates a TOC file's magic and header size, then returns a
// root tag-stream decoder over its body. If the body is itself wrapped
// by the superbundle-TOC outer container, that one wrapper layer is
// peeled off transparently.
func OpenTOC(data []byte) (*tagstream.Decoder, error) {
	r := binreader.New(data)
	magic, err := r.ReadUint32BE()
	if err != nil {
		return nil, errs.Truncated
	}
	if magic != TOCMagic {
		return nil, errs.FormatMismatch
	}
	if err := r.SeekAbsolute(TOCBodyOffset); err != nil {
		return nil, errs.Truncated
	}

	if wrapper, ok := r.PeekUint32BE(); ok && wrapper == TOCWrapperMagic {
		if err := r.SeekRelative(4); err != nil {
			return nil, errs.Truncated
		}
	}

	body, err := r.OpenSubview(r.Remaining())
	if err != nil {
		return nil, err
	}
	return tagstream.NewRootDecoder(body), nil
}

// OpenSB validates an SB file's leading magic and returns a root
// tag-stream decoder over its body.
func OpenSB(data []byte) (*tagstream.Decoder, error) {
	r := binreader.New(data)
	magic, err := r.ReadUint32BE()
	if err != nil {
		return nil, errs.Truncated
	}
	if magic != SBMagic {
		return nil, errs.FormatMismatch
	}
	body, err := r.OpenSubview(r.Remaining())
	if err != nil {
		return nil, err
	}
	return tagstream.NewRootDecoder(body), nil
}

package container

import (
	"github.com/deploymenttheory/frostbite-extract/internal/binreader"
	"github.com/deploymenttheory/frostbite-extract/internal/tagstream"
)

// Superbundle is a named collection of bundles plus any free-standing
// TOC resources it declares directly. ParseSuperbundleTOC fills only
// Bundles and TOCResources; Name, Split and Unavailable stay at their
// zero values here (graph.Superbundle carries the resolved name,
// split flag and unavailability).
type Superbundle struct {
	Name         string
	Split        bool
	Bundles      []Bundle
	TOCResources []TOCResource
	Unavailable  bool
}

// ParseSuperbundleTOC decodes a superbundle's TOC body (already opened
// via OpenTOC). sbBody is the companion SB file's content with its
// leading magic stripped, or nil if no companion SB file is physically
// present for this superbundle. Each TOC-side bundle entry is either
// self-contained (a TOC-only superbundle, parts inlined directly) or a
// byte-range cross-link into sbBody (a superbundle with an SB
// companion); the two shapes are distinguished by whether the entry
// carries sbOffset/sbSize fields.
func ParseSuperbundleTOC(tocDecoder *tagstream.Decoder, sbBody []byte, sbPresent bool) (Superbundle, error) {
	sb := Superbundle{}

	_, err := tagstream.ReadObject(tocDecoder, map[string]func(*tagstream.Decoder) error{
		"bundles": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				bundle, err := parseTOCBundleEntry(d, sbBody, sbPresent)
				if err != nil {
					return err
				}
				sb.Bundles = append(sb.Bundles, bundle)
				return nil
			})
		},
		"tocResources": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				res, err := ParseTOCResource(d)
				if err != nil {
					return err
				}
				sb.TOCResources = append(sb.TOCResources, res)
				return nil
			})
		},
	})
	if err != nil {
		return Superbundle{}, err
	}
	return sb, nil
}

// parseTOCBundleEntry decodes one entry of the "bundles" list. Because
// its shape (inline parts vs. SB cross-link) isn't known until the
// fields are read, both possibilities are registered as nested
// containers up front and resolved once the object is fully drained.
func parseTOCBundleEntry(d *tagstream.Decoder, sbBody []byte, sbPresent bool) (Bundle, error) {
	var bundle Bundle
	hasInlineParts := false

	fields, err := tagstream.ReadObject(d, map[string]func(*tagstream.Decoder) error{
		"ebx": func(d *tagstream.Decoder) error {
			hasInlineParts = true
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				p, err := ParseEBXPart(d)
				if err != nil {
					return err
				}
				bundle.EBX = append(bundle.EBX, p)
				return nil
			})
		},
		"res": func(d *tagstream.Decoder) error {
			hasInlineParts = true
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				p, err := ParseRESPart(d)
				if err != nil {
					return err
				}
				bundle.RES = append(bundle.RES, p)
				return nil
			})
		},
		"chunks": func(d *tagstream.Decoder) error {
			hasInlineParts = true
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				p, err := ParseChunkPart(d)
				if err != nil {
					return err
				}
				bundle.Chunks = append(bundle.Chunks, p)
				return nil
			})
		},
	})
	if err != nil {
		return Bundle{}, err
	}

	bundle.Name = parseString(fields["name"])

	_, hasOffset := fields["sbOffset"]
	_, hasSize := fields["sbSize"]
	if !hasOffset || !hasSize {
		// TOC-only bundle: parts (if any) were already collected inline.
		_ = hasInlineParts
		return bundle, nil
	}

	offset := parseUint64(fields["sbOffset"])
	size := parseUint64(fields["sbSize"])
	if !sbPresent || offset+size > uint64(len(sbBody)) {
		bundle.Unavailable = true
		return bundle, nil
	}

	sub := sbBody[offset : offset+size]
	decoder := tagstream.NewRootDecoder(binreader.New(sub))
	resolved, err := ParseBundleBody(decoder, bundle.Name)
	if err != nil {
		return Bundle{}, err
	}
	return resolved, nil
}

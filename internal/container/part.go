package container

import (
	"github.com/deploymenttheory/frostbite-extract/internal/cas"
	"github.com/deploymenttheory/frostbite-extract/internal/tagstream"
)

// PartCommon is the locator triple plus metadata shared by every part
// kind: EBX, RES, CHUNK, and free-standing TOC resources.
type PartCommon struct {
	SHA1           [20]byte
	CASID          cas.Identifier
	CASOffset      uint64
	CompressedSize uint64
	Flags          uint32
}

// EBXPart is a serialized engine object, named by a slash-separated
// logical path with no extension.
type EBXPart struct {
	PartCommon
	Path             string
	UncompressedSize uint64
}

// RESPart additionally carries a content-type code and an opaque meta
// blob the core does not interpret.
type RESPart struct {
	PartCommon
	Path             string
	UncompressedSize uint64
	ContentType      uint32
	Meta             []byte
}

// ChunkPart is identified by a 16-byte UID instead of a filename; its
// uncompressed size is not pre-known, so its CAS read must terminate
// on consumed-compressed-bytes rather than emitted-uncompressed-bytes.
type ChunkPart struct {
	PartCommon
	UID  [16]byte
	Meta []byte
}

// TOCResource is a part declared directly at the layout/TOC level,
// outside any bundle. Like ChunkPart, its uncompressed size is not
// pre-known.
type TOCResource struct {
	PartCommon
}

// Bundle groups EBX, RES, and CHUNK parts under a name. Unavailable is
// set when the bundle's SB byte range lies outside the physically
// present SB file (the common case for an absent language bundle);
// such a bundle is emitted, not dropped.
type Bundle struct {
	Name        string
	EBX         []EBXPart
	RES         []RESPart
	Chunks      []ChunkPart
	Unavailable bool
}

func parseSHA1(v interface{}) [20]byte {
	if b, ok := v.([20]byte); ok {
		return b
	}
	return [20]byte{}
}

func parseGUID(v interface{}) [16]byte {
	if b, ok := v.([16]byte); ok {
		return b
	}
	return [16]byte{}
}

func parseUint32(v interface{}) uint32 {
	switch t := v.(type) {
	case uint32:
		return t
	case uint64:
		return uint32(t)
	default:
		return 0
	}
}

func parseUint64(v interface{}) uint64 {
	switch t := v.(type) {
	case uint64:
		return t
	case uint32:
		return uint64(t)
	default:
		return 0
	}
}

func parseString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func parseBlob(v interface{}) []byte {
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}

func commonFromFields(f tagstream.Fields) PartCommon {
	return PartCommon{
		SHA1:           parseSHA1(f["sha1"]),
		CASID:          cas.Identifier(parseUint32(f["casId"])),
		CASOffset:      parseUint64(f["casOffset"]),
		CompressedSize: parseUint64(f["compressedSize"]),
		Flags:          parseUint32(f["flags"]),
	}
}

// ParseEBXPart reads one EBX record, already positioned just past its
// BeginContainer event.
func ParseEBXPart(d *tagstream.Decoder) (EBXPart, error) {
	f, err := tagstream.ReadObject(d, nil)
	if err != nil {
		return EBXPart{}, err
	}
	return EBXPart{
		PartCommon:       commonFromFields(f),
		Path:             parseString(f["path"]),
		UncompressedSize: parseUint64(f["uncompressedSize"]),
	}, nil
}

// ParseRESPart reads one RES record.
func ParseRESPart(d *tagstream.Decoder) (RESPart, error) {
	f, err := tagstream.ReadObject(d, nil)
	if err != nil {
		return RESPart{}, err
	}
	return RESPart{
		PartCommon:       commonFromFields(f),
		Path:             parseString(f["path"]),
		UncompressedSize: parseUint64(f["uncompressedSize"]),
		ContentType:      parseUint32(f["contentType"]),
		Meta:             parseBlob(f["meta"]),
	}, nil
}

// ParseChunkPart reads one CHUNK record.
func ParseChunkPart(d *tagstream.Decoder) (ChunkPart, error) {
	f, err := tagstream.ReadObject(d, nil)
	if err != nil {
		return ChunkPart{}, err
	}
	return ChunkPart{
		PartCommon: commonFromFields(f),
		UID:        parseGUID(f["uid"]),
		Meta:       parseBlob(f["meta"]),
	}, nil
}

// ParseTOCResource reads one free-standing TOC resource record.
func ParseTOCResource(d *tagstream.Decoder) (TOCResource, error) {
	f, err := tagstream.ReadObject(d, nil)
	if err != nil {
		return TOCResource{}, err
	}
	return TOCResource{PartCommon: commonFromFields(f)}, nil
}

// ParseBundleBody reads a bundle's "ebx"/"res"/"chunks" lists from the
// decoder, already positioned just past the bundle's BeginContainer
// event. Used both for a TOC-only bundle (decoded directly from the
// TOC body) and for an SB-backed bundle (decoded from the SB byte
// range the TOC cross-links to).
func ParseBundleBody(d *tagstream.Decoder, name string) (Bundle, error) {
	bundle := Bundle{Name: name}

	_, err := tagstream.ReadObject(d, map[string]func(*tagstream.Decoder) error{
		"ebx": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				part, err := ParseEBXPart(d)
				if err != nil {
					return err
				}
				bundle.EBX = append(bundle.EBX, part)
				return nil
			})
		},
		"res": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				part, err := ParseRESPart(d)
				if err != nil {
					return err
				}
				bundle.RES = append(bundle.RES, part)
				return nil
			})
		},
		"chunks": func(d *tagstream.Decoder) error {
			return tagstream.WalkList(d, nil, func(d *tagstream.Decoder) error {
				part, err := ParseChunkPart(d)
				if err != nil {
					return err
				}
				bundle.Chunks = append(bundle.Chunks, part)
				return nil
			})
		},
	})
	if err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

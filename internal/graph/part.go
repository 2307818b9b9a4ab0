package graph

import (
	"encoding/hex"

	"github.com/deploymenttheory/frostbite-extract/internal/container"
)

func ebxPart(superbundle, bundle string, p container.EBXPart) Part {
	return Part{
		Kind:                PartEBX,
		Identity:            p.Path,
		SHA1:                p.SHA1,
		CASID:               p.CASID,
		CASOffset:           p.CASOffset,
		CompressedSize:      p.CompressedSize,
		UncompressedSize:    p.UncompressedSize,
		HasUncompressedSize: true,
		Flags:               p.Flags,
		Superbundle:         superbundle,
		Bundle:              bundle,
	}
}

func resPart(superbundle, bundle string, p container.RESPart) Part {
	return Part{
		Kind:                PartRES,
		Identity:            p.Path,
		SHA1:                p.SHA1,
		CASID:               p.CASID,
		CASOffset:           p.CASOffset,
		CompressedSize:      p.CompressedSize,
		UncompressedSize:    p.UncompressedSize,
		HasUncompressedSize: true,
		ContentType:         p.ContentType,
		Meta:                p.Meta,
		Flags:               p.Flags,
		Superbundle:         superbundle,
		Bundle:              bundle,
	}
}

func chunkPart(superbundle, bundle string, p container.ChunkPart) Part {
	return Part{
		Kind:           PartChunk,
		Identity:       hex.EncodeToString(p.UID[:]),
		SHA1:           p.SHA1,
		CASID:          p.CASID,
		CASOffset:      p.CASOffset,
		CompressedSize: p.CompressedSize,
		Meta:           p.Meta,
		Flags:          p.Flags,
		Superbundle:    superbundle,
		Bundle:         bundle,
	}
}

func tocResourcePart(superbundle string, r container.TOCResource) Part {
	return Part{
		Kind:           PartTOCResource,
		Identity:       hex.EncodeToString(r.SHA1[:]),
		SHA1:           r.SHA1,
		CASID:          r.CASID,
		CASOffset:      r.CASOffset,
		CompressedSize: r.CompressedSize,
		Flags:          r.Flags,
		Superbundle:    superbundle,
	}
}

// Package sink implements a concrete filesystem writer for extracted
// part bytes behind the extract.Sink interface. Grounded in
// internal/fsutil's path-escape discipline (JoinUnderRoot) and lazy,
// idempotent directory creation (CreateDirIfNotExists).
package sink

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/frostbite-extract/internal/fsutil"
	"github.com/deploymenttheory/frostbite-extract/internal/graph"
)

// FileSink writes extracted parts under Root, laid out by kind:
//
//	<root>/ebx/<logical path>.ebx
//	<root>/res/<logical path>.res
//	<root>/chunks/<uid-hex>.chunk
//	<root>/toc/<sha1-hex>.bin
type FileSink struct {
	Root string
}

// Write implements extract.Sink.
func (s FileSink) Write(kind graph.PartKind, identity string, _ []byte, data []byte) error {
	rel, err := relPath(kind, identity)
	if err != nil {
		return err
	}

	path, ok := fsutil.JoinUnderRoot(s.Root, rel)
	if !ok {
		return fmt.Errorf("sink: identity %q escapes output root", identity)
	}

	if err := fsutil.CreateDirIfNotExists(filepath.Dir(path)); err != nil {
		return fmt.Errorf("sink: create directory for %q: %w", identity, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sink: write %q: %w", identity, err)
	}
	return nil
}

func relPath(kind graph.PartKind, identity string) (string, error) {
	switch kind {
	case graph.PartEBX:
		return sanitizeLogicalPath("ebx", identity, ".ebx")
	case graph.PartRES:
		return sanitizeLogicalPath("res", identity, ".res")
	case graph.PartChunk:
		if _, err := hex.DecodeString(identity); err != nil {
			return "", fmt.Errorf("sink: malformed chunk uid %q: %w", identity, err)
		}
		return filepath.Join("chunks", identity+".chunk"), nil
	case graph.PartTOCResource:
		if _, err := hex.DecodeString(identity); err != nil {
			return "", fmt.Errorf("sink: malformed toc sha1 %q: %w", identity, err)
		}
		return filepath.Join("toc", identity+".bin"), nil
	default:
		return "", fmt.Errorf("sink: unknown part kind %v", kind)
	}
}

// sanitizeLogicalPath rejects ".." and absolute-path segments in a
// slash-separated logical filename before it becomes part of an
// on-disk path, then converts it to the host separator.
func sanitizeLogicalPath(subdir, logical, ext string) (string, error) {
	if logical == "" {
		return "", fmt.Errorf("sink: empty logical path")
	}
	for _, seg := range strings.Split(logical, "/") {
		if seg == ".." || seg == "." {
			return "", fmt.Errorf("sink: logical path %q contains a traversal segment", logical)
		}
	}
	clean := fsutil.NormalizePath(logical)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("sink: logical path %q is absolute", logical)
	}
	return filepath.Join(subdir, clean+ext), nil
}

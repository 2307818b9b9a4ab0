// fsutil/paths.go
package fsutil

import (
	"path/filepath"
	"strings"
)

// CleanPath cleans a path by removing redundant separators and resolving ".." and "."
func CleanPath(path string) string {
	return filepath.Clean(path)
}

// NormalizePath normalizes a path for the current OS, tolerating paths
// produced on a different OS (the engine's logical filenames are always
// slash-separated regardless of host platform).
func NormalizePath(path string) string {
	result := strings.ReplaceAll(path, "\\", string(filepath.Separator))
	result = strings.ReplaceAll(result, "/", string(filepath.Separator))
	return CleanPath(result)
}

// JoinUnderRoot joins rel onto root after verifying rel does not escape
// root via ".." segments or an absolute path component. Used by the
// output sink so a maliciously or accidentally crafted logical path
// inside a container can never write outside the extraction root.
func JoinUnderRoot(root string, rel ...string) (string, bool) {
	joined := filepath.Join(append([]string{root}, rel...)...)
	cleanRoot := filepath.Clean(root)
	cleanJoined := filepath.Clean(joined)
	if cleanJoined != cleanRoot && !strings.HasPrefix(cleanJoined, cleanRoot+string(filepath.Separator)) {
		return "", false
	}
	return cleanJoined, true
}

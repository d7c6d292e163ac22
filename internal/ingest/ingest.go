// Package ingest discovers HWP/HWPX files on disk: directory scans, globs,
// an fsnotify inbox watcher and a content-addressed upload store.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
)

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// AllowedExt checks if a file extension is a supported document extension.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// isTransient matches editor lock and partial download files.
func isTransient(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~") ||
		strings.HasSuffix(base, ".crdownload") || strings.HasSuffix(base, ".part")
}

func candidate(path string) bool {
	return AllowedExt(filepath.Ext(path)) && !IsHidden(path) && !isTransient(path)
}

package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ScanDirectory walks root and returns supported documents in lexical order.
// Unreadable entries are counted as failed and skipped.
func ScanDirectory(root string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var paths []string
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) || isTransient(path) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

// Expand resolves command line arguments: directories are scanned
// recursively with hidden entries skipped, anything else is a glob pattern.
// The result is deduplicated and sorted; stats cover the directory scans.
func Expand(args ...string) ([]string, DirStats, error) {
	seen := map[string]struct{}{}
	var out []string
	var total DirStats
	add := func(paths []string) {
		for _, p := range paths {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, arg := range args {
		if fi, err := os.Stat(arg); err == nil && fi.IsDir() {
			paths, stats, err := ScanDirectory(arg, true)
			if err != nil {
				return nil, total, err
			}
			total.Scanned += stats.Scanned
			total.Matched += stats.Matched
			total.Failed += stats.Failed
			add(paths)
			continue
		}
		paths, err := Glob(arg)
		if err != nil {
			return nil, total, err
		}
		add(paths)
	}
	sort.Strings(out)
	return out, total, nil
}

// Glob expands each pattern (doublestar syntax, ** crosses directories) and
// keeps supported documents. Duplicates are dropped; order is sorted.
func Glob(patterns ...string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, pat := range patterns {
		if !doublestar.ValidatePathPattern(pat) {
			return nil, fmt.Errorf("invalid glob pattern %q", pat)
		}
		matches, err := doublestar.FilepathGlob(pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pat, err)
		}
		for _, m := range matches {
			if !candidate(m) {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

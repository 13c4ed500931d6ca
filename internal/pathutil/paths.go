// Package pathutil resolves the filesystem paths a session serves and the
// base directory its URLs are computed against.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// PathNotFoundError indicates a requested path does not exist on disk.
// It is raised before any port or process resource is allocated.
type PathNotFoundError struct {
	Path string
}

// Error implements the error interface
func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path does not exist: %s", e.Path)
}

// Canonicalize resolves every input path to its canonical absolute form
// (symlinks resolved) and removes duplicates. The result is sorted so that
// callers get a stable served-path set.
//
// Every input must exist; the first missing path fails with a
// *PathNotFoundError naming it.
func Canonicalize(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths given")
	}

	seen := make(map[string]struct{}, len(paths))
	canonical := make([]string, 0, len(paths))

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, &PathNotFoundError{Path: p}
		}

		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}

		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		canonical = append(canonical, resolved)
	}

	sort.Strings(canonical)
	return canonical, nil
}

// CommonBaseDir computes the directory served URLs are relative to: the
// longest common string prefix of the canonical paths when it names an
// existing directory shared by more than one path, otherwise the prefix's
// parent directory. A single served path always bases at its parent, so its
// final path element survives into the URL.
func CommonBaseDir(canonical []string) string {
	prefix := commonPrefix(canonical)

	if len(canonical) > 1 {
		if info, err := os.Stat(prefix); err == nil && info.IsDir() {
			return filepath.Clean(prefix)
		}
	}
	return filepath.Dir(filepath.Clean(prefix))
}

// commonPrefix returns the longest common leading string of all paths,
// character-wise, with no regard for path element boundaries.
func commonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	prefix := paths[0]
	for _, p := range paths[1:] {
		n := 0
		for n < len(prefix) && n < len(p) && prefix[n] == p[n] {
			n++
		}
		prefix = prefix[:n]
	}
	return prefix
}

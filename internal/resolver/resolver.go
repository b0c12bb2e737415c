// Package resolver locates repository roots: upward from a file path to
// its nearest enclosing repository, and downward from a vault root to
// every repository underneath it.
package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/skaphos/notesync/internal/model"
)

// metadataDir is the repository metadata store name. A .git entry may be
// a directory (normal checkout) or a file (worktree/submodule); both
// mark a repository root.
const metadataDir = ".git"

// IsRepoRoot reports whether dir itself is a repository root.
func IsRepoRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, metadataDir))
	return err == nil
}

// FindRoot resolves path to its nearest (deepest) enclosing repository
// root. The leaf itself is never tested, only its ancestor directories,
// so a path to a file that does not exist yet resolves fine. The second
// return is false when no ancestor is a repository root; the caller
// treats the path as untracked, not as an error.
func FindRoot(path string) (model.RepoRoot, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.RepoRoot{}, false
	}

	dir := filepath.Dir(abs)
	for {
		if IsRepoRoot(dir) {
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				rel = filepath.Base(abs)
			}
			return model.RepoRoot{Root: dir, Rel: filepath.ToSlash(rel)}, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return model.RepoRoot{}, false
		}
		dir = parent
	}
}

// ScanOptions configures a downward repository scan.
type ScanOptions struct {
	// Exclude is a set of doublestar glob patterns; matching directories
	// are skipped entirely.
	Exclude []string
}

// Scan walks root and returns every repository root underneath it,
// sorted, including nested repositories. It never descends into
// metadata stores or excluded directories.
func Scan(root string, opts ScanOptions) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var roots []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == metadataDir {
			return fs.SkipDir
		}
		if matchesExclude(path, opts.Exclude) {
			return fs.SkipDir
		}
		if IsRepoRoot(path) {
			roots = append(roots, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(roots)
	return roots, nil
}

func matchesExclude(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	slashPath := filepath.ToSlash(path)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		match, err := doublestar.Match(pattern, slashPath)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}

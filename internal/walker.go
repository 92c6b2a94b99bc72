package internal

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// WalkOptions configures the shared tree walker. Exclusions are explicit
// predicates instead of inline checks repeated at every call site.
type WalkOptions struct {
	// Exclude returns true for entries (files or directories) to skip.
	// Directories excluded here are not descended into.
	Exclude func(name string, isDir bool) bool

	// Accept filters files after exclusion; nil accepts everything.
	Accept func(path string) bool
}

// ExcludeHiddenAndInternal skips dotfiles and dot-directories, which
// covers the library's own .trash, .manifests and .lumen directories.
func ExcludeHiddenAndInternal(name string, isDir bool) bool {
	return strings.HasPrefix(name, ".")
}

// CollectFiles walks root and returns matching regular files in sorted
// order, which keeps the duplicate-winner rule deterministic across runs.
// Symlinks are never followed or returned.
func CollectFiles(root string, opts WalkOptions) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()

		if d.IsDir() {
			if path != root && opts.Exclude != nil && opts.Exclude(name, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if opts.Exclude != nil && opts.Exclude(name, false) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil // symlinks, devices, pipes
		}
		if opts.Accept != nil && !opts.Accept(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning files: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// CollectMediaFiles returns every media file under root, skipping hidden
// entries and symlinks.
func CollectMediaFiles(root string, kinds *MediaKinds) ([]string, error) {
	return CollectFiles(root, WalkOptions{
		Exclude: ExcludeHiddenAndInternal,
		Accept:  kinds.IsMedia,
	})
}

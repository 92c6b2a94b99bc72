package internal

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"lumen/internal/model"
)

// maxCleanupPasses caps the cascading empty-directory removal; no sane
// tree is deeper than this.
const maxCleanupPasses = 10

// Terraform converts the folder tree at targetRoot into the managed
// library layout in place, with move semantics. Pre-flight failures
// (missing tools, low space, unwritable destination, lock held) abort
// before any mutation. Every risky mutation is bracketed by manifest
// records so a killed run can resume without re-reading file content.
func (lib *Library) Terraform(ctx context.Context, targetRoot string) (<-chan Event, error) {
	if fi, err := os.Stat(targetRoot); err != nil || !fi.IsDir() {
		return nil, &os.PathError{Op: "terraform", Path: targetRoot, Err: os.ErrNotExist}
	}
	if err := Preflight(lib.Root, lib.Cfg); err != nil {
		return nil, err
	}

	lock, err := AcquireRunLock(lib.Root)
	if err != nil {
		return nil, err
	}

	files, err := CollectMediaFiles(targetRoot, lib.Kinds)
	if err != nil {
		lock.Release()
		return nil, err
	}

	// A prior run that never wrote its complete record leaves a resume
	// set; those files are skipped without re-hashing.
	done := map[string]bool{}
	if prior, err := LatestIncompleteManifest(lib.Root); err == nil && prior != "" {
		if set, err := LoadProcessedSet(prior); err == nil {
			done = set
			lib.Log.Info("resuming terraform", "manifest", prior, "already_done", len(set))
		}
	}

	manifest, err := NewManifest(lib.Root)
	if err != nil {
		lock.Release()
		return nil, err
	}

	runID := uuid.NewString()
	ch := make(chan Event, 64)

	go func() {
		defer close(ch)
		defer lock.Release()
		defer manifest.Close()

		em := newEmitter(ch, lib.Cfg)
		em.Start(len(files))
		manifest.Start(runID, targetRoot, len(files))

		var stats OpStats
		cancelled := false
		for i, src := range files {
			if ctx.Err() != nil {
				lib.Log.Info("terraform cancelled", "processed", i, "total", len(files))
				cancelled = true
				break
			}
			if done[src] {
				stats.Skipped++
				em.Progress(i+1, len(files), stats, "terraforming")
				continue
			}

			lib.terraformOne(ctx, src, manifest, em, &stats)
			em.Progress(i+1, len(files), stats, "terraforming")
		}

		// A cancelled run must not write the complete record; the open
		// manifest is what lets the next run resume.
		if cancelled {
			em.Complete(stats)
			return
		}

		removed := lib.removeEmptyDirs(targetRoot)
		if removed > 0 {
			lib.Log.Info("removed empty directories", "count", removed)
		}

		manifest.Complete(stats)
		em.Complete(stats)
	}()
	return ch, nil
}

// terraformOne routes a single file: RAW formats go straight to the
// trash, everything else runs the full ingestion transaction with move
// semantics.
func (lib *Library) terraformOne(ctx context.Context, src string, manifest *Manifest, em *emitter, stats *OpStats) {
	if lib.Kinds.IsRaw(src) {
		// Rewriting proprietary RAW metadata is too risky; skip to trash
		// without attempting normalization. The processing record lands
		// before the move so a crash mid-deposit is visible on resume.
		procErr := NewProcessError(src, model.CategoryRawSkipped, "RAW format not reorganized", nil)
		manifest.Processing(src)
		if _, err := lib.Trash.Deposit(src, model.CategoryRawSkipped); err != nil {
			lib.Log.Warn("trash deposit failed", "file", src, "err", err)
		}
		manifest.Skipped(src, model.CategoryRawSkipped, procErr.Message)
		stats.Skipped++
		em.Rejected(src, procErr, *stats)
		return
	}

	manifest.Processing(src)

	asset, procErr := lib.IngestFile(ctx, src, StageMove)
	if asset != nil {
		// A source that already sits where its record points was not
		// reorganized; it counts as skipped, not imported.
		if sameFilePath(src, lib.abs(asset.CurrentPath)) {
			stats.Skipped++
		} else {
			stats.Imported++
		}
		manifest.Success(src, asset.CurrentPath, asset.ContentHash)
		return
	}

	if procErr.Category == model.CategoryDuplicate {
		stats.Duplicates++
	} else {
		stats.Errors++
	}
	manifest.Failed(src, procErr.Category, procErr.Message)
	em.Rejected(src, procErr, *stats)
	lib.Log.Warn("terraform rejected", "src", src, "category", procErr.Category, "err", procErr.Err)
}

// removeEmptyDirs walks bottom-up deleting directories left empty by the
// reorganization, repeating passes so emptied parents cascade. Hidden
// directories (library internals) are preserved; harmless hidden files
// like .DS_Store do not keep a directory alive.
func (lib *Library) removeEmptyDirs(root string) int {
	removed := 0
	for pass := 0; pass < maxCleanupPasses; pass++ {
		foundThisPass := 0

		var dirs []string
		filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			name := d.Name()
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
			return nil
		})
		// Deepest first.
		sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

		for _, dir := range dirs {
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			empty := true
			for _, e := range entries {
				if !strings.HasPrefix(e.Name(), ".") || e.IsDir() {
					empty = false
					break
				}
			}
			if !empty {
				continue
			}
			for _, e := range entries {
				os.Remove(filepath.Join(dir, e.Name()))
			}
			if err := os.Remove(dir); err == nil {
				removed++
				foundThisPass++
			}
		}

		if foundThisPass == 0 {
			break
		}
	}
	return removed
}

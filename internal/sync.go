package internal

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"lumen/internal/model"
)

// SyncMode selects between incremental index maintenance and a full
// rebuild, which discards every record and re-indexes the whole tree.
type SyncMode string

const (
	SyncIncremental SyncMode = "incremental"
	SyncFull        SyncMode = "full"
)

// SyncLibrary reconciles the asset index with what is actually on disk:
// records whose file vanished are removed (ghosts), files without a
// record are indexed in place (untracked), and directories left empty
// are swept. Files are indexed as-is; no normalization happens here.
func (lib *Library) SyncLibrary(ctx context.Context, mode SyncMode) <-chan Event {
	ch := make(chan Event, 64)

	go func() {
		defer close(ch)
		em := newEmitter(ch, lib.Cfg)

		files, err := CollectMediaFiles(lib.Root, lib.Kinds)
		if err != nil {
			lib.Log.Error("library scan failed", "err", err)
			em.Complete(OpStats{Errors: 1})
			return
		}

		onDisk := make(map[string]bool, len(files))
		for _, f := range files {
			onDisk[mustRel(lib.Root, f)] = true
		}

		tracked, err := lib.Store.ListAssetPaths()
		if err != nil {
			lib.Log.Error("asset path listing failed", "err", err)
			em.Complete(OpStats{Errors: 1})
			return
		}

		// Incremental mode drops only records whose file vanished. A full
		// rebuild drops every record and re-indexes from the bytes on
		// disk, so stale records cannot survive and no file collides with
		// its own leftover entry.
		var ghosts []string
		for rel := range tracked {
			if mode == SyncFull || !onDisk[rel] {
				ghosts = append(ghosts, rel)
			}
		}
		sort.Strings(ghosts)

		var untracked []string
		for _, f := range files {
			if _, ok := tracked[mustRel(lib.Root, f)]; mode == SyncFull || !ok {
				untracked = append(untracked, f)
			}
		}

		em.Start(len(ghosts) + len(untracked))
		var stats OpStats
		current := 0

		for _, rel := range ghosts {
			if ctx.Err() != nil {
				break
			}
			if err := lib.Store.DeleteAsset(tracked[rel]); err != nil {
				lib.Log.Warn("ghost removal failed", "path", rel, "err", err)
				stats.Errors++
			} else {
				stats.Updated++
			}
			current++
			em.Progress(current, len(ghosts)+len(untracked), stats, "removing_deleted")
		}

		for _, full := range untracked {
			if ctx.Err() != nil {
				break
			}
			current++
			if procErr := lib.indexInPlace(full); procErr != nil {
				if procErr.Category == model.CategoryDuplicate {
					stats.Duplicates++
				} else {
					stats.Errors++
				}
				em.Rejected(full, procErr, stats)
			} else {
				stats.Imported++
			}
			em.Progress(current, len(ghosts)+len(untracked), stats, "adding_untracked")
		}

		if removed := lib.removeEmptyDirs(lib.Root); removed > 0 {
			lib.Log.Info("removed empty directories", "count", removed)
		}

		em.Complete(stats)
	}()
	return ch
}

// indexInPlace records an existing library file without touching it.
// A file whose content is already indexed elsewhere stays on disk and is
// reported as a duplicate; sync never deletes media.
func (lib *Library) indexInPlace(full string) *ProcessError {
	hash, err := HashFile(full)
	if err != nil {
		return Categorize(full, err)
	}

	existing, err := lib.Store.FindActiveByHash(hash)
	if err != nil {
		return NewProcessError(full, model.CategoryIO, "asset store lookup failed", err)
	}
	if existing != nil {
		return NewProcessError(full, model.CategoryDuplicate,
			"content already indexed at "+existing.CurrentPath, nil)
	}

	capturedAt, err := lib.Extractor.CaptureDate(full)
	if err != nil {
		return Categorize(full, err)
	}

	fi, err := os.Stat(full)
	if err != nil {
		return Categorize(full, err)
	}

	fileType := lib.Kinds.FileTypeOf(full)
	width, height := Dimensions(full, fileType)

	asset := &model.MediaAsset{
		ContentHash:      hash,
		CurrentPath:      mustRel(lib.Root, full),
		OriginalFilename: filepath.Base(full),
		CapturedAt:       capturedAt,
		FileType:         fileType,
		Width:            width,
		Height:           height,
		ByteSize:         fi.Size(),
	}
	if err := lib.Store.InsertAsset(asset); err != nil {
		return NewProcessError(full, model.CategoryIO, "asset record write failed", err)
	}
	return nil
}

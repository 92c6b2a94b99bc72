package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"lumen/internal/model"
)

// RetagMode selects how the target date applies across the batch.
type RetagMode string

const (
	// RetagSame sets every asset to the same capture date.
	RetagSame RetagMode = "same"
	// RetagShift moves every asset by the offset between the first
	// asset's current date and the target date.
	RetagShift RetagMode = "shift"
	// RetagSequence spaces assets from the target date by a fixed
	// interval, in capture-date order.
	RetagSequence RetagMode = "sequence"
)

// RetagAssets rewrites the capture date of already-stored assets. Assets
// are processed in ascending id order so intra-batch hash convergence has
// a deterministic winner: the first asset to reach a hash keeps it, every
// later collision is demoted to the trash as a duplicate. One asset's
// failure skips that asset and never aborts the batch.
func (lib *Library) RetagAssets(ctx context.Context, ids []int64, target time.Time, mode RetagMode, interval time.Duration) (<-chan Event, error) {
	targets, err := lib.resolveTargets(ids, target, mode, interval)
	if err != nil {
		return nil, err
	}

	ch := make(chan Event, 64)
	go func() {
		defer close(ch)

		em := newEmitter(ch, lib.Cfg)
		em.Start(len(targets))

		sorted := make([]int64, 0, len(targets))
		for id := range targets {
			sorted = append(sorted, id)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var stats OpStats
		for i, id := range sorted {
			if ctx.Err() != nil {
				lib.Log.Info("retag cancelled", "processed", i, "total", len(sorted))
				break
			}

			procErr := lib.retagOne(ctx, id, targets[id], &stats)
			if procErr != nil {
				if procErr.Category == model.CategoryDuplicate {
					stats.Duplicates++
				} else {
					stats.Errors++
				}
				em.Rejected(procErr.Path, procErr, stats)
			}
			em.Progress(i+1, len(sorted), stats, "retagging")
		}

		em.Complete(stats)
	}()
	return ch, nil
}

// resolveTargets computes the per-asset target date for the batch mode.
func (lib *Library) resolveTargets(ids []int64, target time.Time, mode RetagMode, interval time.Duration) (map[int64]time.Time, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no assets selected")
	}

	targets := make(map[int64]time.Time, len(ids))
	switch mode {
	case RetagSame:
		for _, id := range ids {
			targets[id] = target
		}

	case RetagShift:
		first, err := lib.Store.GetAsset(ids[0])
		if err != nil {
			return nil, fmt.Errorf("loading asset %d: %w", ids[0], err)
		}
		if first == nil {
			return nil, fmt.Errorf("asset %d not found", ids[0])
		}
		offset := target.Sub(first.CapturedAt)
		for _, id := range ids {
			a, err := lib.Store.GetAsset(id)
			if err != nil {
				return nil, fmt.Errorf("loading asset %d: %w", id, err)
			}
			if a == nil {
				continue
			}
			targets[id] = a.CapturedAt.Add(offset)
		}

	case RetagSequence:
		if interval <= 0 {
			return nil, fmt.Errorf("sequence mode needs a positive interval")
		}
		type dated struct {
			id int64
			at time.Time
		}
		var assets []dated
		for _, id := range ids {
			a, err := lib.Store.GetAsset(id)
			if err != nil {
				return nil, fmt.Errorf("loading asset %d: %w", id, err)
			}
			if a == nil {
				continue
			}
			assets = append(assets, dated{id: a.ID, at: a.CapturedAt})
		}
		sort.Slice(assets, func(i, j int) bool { return assets[i].at.Before(assets[j].at) })
		for i, a := range assets {
			targets[a.id] = target.Add(time.Duration(i) * interval)
		}

	default:
		return nil, fmt.Errorf("unknown retag mode %q", mode)
	}
	return targets, nil
}

// retagOne re-runs the normalize → rehash → dedupe half of the ingestion
// transaction against an existing asset. On any failure before the store
// update the asset's file and record are left exactly as they were.
func (lib *Library) retagOne(ctx context.Context, id int64, target time.Time, stats *OpStats) *ProcessError {
	asset, err := lib.Store.GetAsset(id)
	if err != nil {
		return NewProcessError(fmt.Sprintf("asset %d", id), model.CategoryIO, "asset store lookup failed", err)
	}
	if asset == nil {
		return NewProcessError(fmt.Sprintf("asset %d", id), model.CategoryIO, "asset not found", nil)
	}

	full := lib.abs(asset.CurrentPath)
	if _, err := os.Stat(full); err != nil {
		return Categorize(asset.CurrentPath, err)
	}

	// Keep the original bytes until the record update commits. Any
	// failure after the rewrite restores them, so an active record never
	// points at a file whose hash disagrees with it. The dot prefix
	// keeps the copy out of media scans if a crash strands it.
	backup := filepath.Join(filepath.Dir(full), "."+filepath.Base(full)+".retag")
	if err := copyFile(full, backup); err != nil {
		return Categorize(asset.CurrentPath, err)
	}
	defer os.Remove(backup)

	// Normalize in place; the tool normalizer only replaces the file
	// after the rewrite verified, so a failure here leaves it untouched.
	if err := lib.Norm.Normalize(ctx, full, target); err != nil {
		return Categorize(asset.CurrentPath, err)
	}

	// restore puts the pre-rewrite bytes back at the recorded path; cur
	// is wherever the rewritten file currently sits.
	restore := func(cur string) {
		if !sameFilePath(cur, full) {
			os.Remove(cur)
			lib.cleanupEmptyParents(filepath.Dir(cur))
		}
		if mvErr := moveFile(backup, full); mvErr != nil {
			lib.Log.Error("rollback restore failed", "file", full, "err", mvErr)
		}
	}

	newHash, err := HashFile(full)
	if err != nil {
		restore(full)
		return Categorize(asset.CurrentPath, err)
	}

	// Dedupe against the rest of the library and assets already updated
	// in this batch, excluding this asset's own record.
	winner, err := lib.Store.FindActiveByHashExcluding(newHash, asset.ID)
	if err != nil {
		restore(full)
		return NewProcessError(asset.CurrentPath, model.CategoryIO, "asset store lookup failed", err)
	}
	if winner != nil {
		oldDir := filepath.Dir(full)
		if _, terr := lib.Trash.Deposit(full, model.CategoryDuplicate); terr != nil {
			lib.Log.Warn("trash deposit failed", "file", full, "err", terr)
		}
		if err := lib.Store.DeleteAsset(asset.ID); err != nil {
			return NewProcessError(asset.CurrentPath, model.CategoryIO, "asset record delete failed", err)
		}
		os.Remove(backup)
		lib.cleanupEmptyParents(oldDir)
		return NewProcessError(asset.CurrentPath, model.CategoryDuplicate,
			fmt.Sprintf("became identical to %s after retag", winner.CurrentPath), nil)
	}

	ext := filepath.Ext(asset.CurrentPath)
	newRel := ResolveCollisionFor(lib.Root, DerivePath(target, newHash, ext), full)
	newFull := lib.abs(newRel)

	oldRel := asset.CurrentPath
	oldDir := filepath.Dir(full)
	if newRel != oldRel {
		if err := ensureDir(newFull); err != nil {
			restore(full)
			return Categorize(asset.CurrentPath, err)
		}
		if err := moveFile(full, newFull); err != nil {
			restore(full)
			return Categorize(asset.CurrentPath, err)
		}
	}

	fi, err := os.Stat(newFull)
	if err != nil {
		restore(newFull)
		return Categorize(newRel, err)
	}

	asset.ContentHash = newHash
	asset.CurrentPath = newRel
	asset.CapturedAt = target
	asset.ByteSize = fi.Size()

	if err := lib.Store.UpdateAsset(asset); err != nil {
		restore(newFull)
		lib.Log.Error("asset record update failed", "id", asset.ID, "err", err)
		return NewProcessError(oldRel, model.CategoryIO, "asset record update failed", err)
	}

	if newRel != oldRel {
		os.Remove(backup)
		lib.cleanupEmptyParents(oldDir)
	}
	stats.Updated++
	lib.Log.Info("retagged", "id", asset.ID, "path", newRel, "date", target.Format(ExifTimeFormat))
	return nil
}

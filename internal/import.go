package internal

import (
	"context"

	"lumen/internal/model"
)

// ImportFiles copies the given files into the library, one at a time.
// The returned channel carries the progress protocol (start, throttled
// progress, per-file rejections, final summary) and is closed when the
// batch finishes. Processing order is the caller's order; the duplicate
// winner is always the file processed first.
func (lib *Library) ImportFiles(ctx context.Context, paths []string) <-chan Event {
	ch := make(chan Event, 64)

	go func() {
		defer close(ch)

		em := newEmitter(ch, lib.Cfg)
		em.Start(len(paths))

		var stats OpStats
		for i, src := range paths {
			// Cancellation is cooperative, checked between files only.
			if ctx.Err() != nil {
				lib.Log.Info("import cancelled", "processed", i, "total", len(paths))
				break
			}

			asset, procErr := lib.IngestFile(ctx, src, StageCopy)
			switch {
			case asset != nil:
				stats.Imported++
				lib.Log.Info("imported", "src", src, "dest", asset.CurrentPath, "hash", ShortHash(asset.ContentHash))
			case procErr.Category == model.CategoryDuplicate:
				stats.Duplicates++
				em.Rejected(src, procErr, stats)
				lib.Log.Info("duplicate skipped", "src", src)
			default:
				stats.Errors++
				em.Rejected(src, procErr, stats)
				lib.Log.Warn("import rejected", "src", src, "category", procErr.Category, "err", procErr.Err)
			}

			em.Progress(i+1, len(paths), stats, "importing")
		}

		em.Complete(stats)
	}()

	return ch
}

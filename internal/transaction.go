package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"lumen/internal/model"
)

// StageMode selects how a source file enters the library.
type StageMode int

const (
	// StageCopy leaves the source untouched until the import succeeds.
	StageCopy StageMode = iota
	// StageMove consumes the source; used when reorganizing a tree in
	// place. Cross-device moves degrade to copy + delete-original.
	StageMove
)

// IngestFile runs the full per-file transaction:
//
//	hash-check → stage → normalize → rehash → dedupe-check → commit
//
// The returned asset is non-nil exactly when the file was committed.
// Every rejection comes back as a categorized ProcessError; duplicates
// use CategoryDuplicate. At no point can an active asset exist whose
// on-disk bytes disagree with its stored hash: the post-normalization
// rehash always runs before the record is written.
func (lib *Library) IngestFile(ctx context.Context, src string, mode StageMode) (*model.MediaAsset, *ProcessError) {
	preHash, err := HashFile(src)
	if err != nil {
		return nil, Categorize(src, err)
	}

	// Hash-check (pre): a known duplicate never touches the library
	// layout; the source goes straight to the categorized trash. The
	// match may be this very file when a managed tree is reorganized
	// again, so an asset is never treated as a duplicate of itself.
	existing, err := lib.Store.FindActiveByHash(preHash)
	if err != nil {
		return nil, NewProcessError(src, model.CategoryIO, "asset store lookup failed", err)
	}
	if existing != nil {
		if sameFilePath(src, lib.abs(existing.CurrentPath)) {
			return existing, nil
		}
		return nil, lib.rejectAsDuplicate(src, existing)
	}

	capturedAt, err := lib.Extractor.CaptureDate(src)
	if err != nil {
		return nil, Categorize(src, err)
	}

	fileType := lib.Kinds.FileTypeOf(src)
	ext := filepath.Ext(src)

	// Stage at the location derived from the pre-normalization hash; the
	// final name is settled after rehash.
	stageRel := ResolveCollisionFor(lib.Root, DerivePath(capturedAt, preHash, ext), src)
	stageFull := lib.abs(stageRel)
	if err := ensureDir(stageFull); err != nil {
		return nil, Categorize(src, err)
	}

	alreadyInPlace := sameFilePath(src, stageFull)
	if !alreadyInPlace {
		if mode == StageCopy {
			err = copyFileAtomic(src, stageFull)
		} else {
			err = moveFile(src, stageFull)
		}
		if err != nil {
			return nil, Categorize(src, err)
		}
	}

	// Normalize the staged copy. On failure the stage is rolled back:
	// an import still has the untouched source, so the staged copy is
	// deleted; a move consumed the source, so the staged file is the
	// only copy left and goes to the trash instead.
	if err := lib.Norm.Normalize(ctx, stageFull, capturedAt); err != nil {
		procErr := Categorize(src, err)
		lib.rollbackStage(stageFull, mode, procErr.Category)
		return nil, procErr
	}

	// Rehash (post): normalization is expected to change the bytes; the
	// pre-normalization hash is never trusted for final identity.
	postHash, err := HashFile(stageFull)
	if err != nil {
		procErr := Categorize(src, err)
		lib.rollbackStage(stageFull, mode, procErr.Category)
		return nil, procErr
	}

	// Dedupe-check (post): two distinct sources can become byte-identical
	// once both carry the same canonical timestamp. The asset that got
	// here first wins; this one is demoted.
	collided, err := lib.Store.FindActiveByHash(postHash)
	if err != nil {
		procErr := NewProcessError(src, model.CategoryIO, "asset store lookup failed", err)
		lib.rollbackStage(stageFull, mode, procErr.Category)
		return nil, procErr
	}
	if collided != nil {
		collidedFull := lib.abs(collided.CurrentPath)
		switch {
		case sameFilePath(stageFull, collidedFull):
			// The staged file is the colliding record's own file.
			return collided, nil
		case sameFilePath(src, collidedFull):
			// An edited file converged back to its own record once
			// normalized. Put it back where the record says it lives
			// instead of trashing the record's only copy.
			if err := moveFile(stageFull, collidedFull); err != nil {
				procErr := Categorize(src, err)
				lib.rollbackStage(stageFull, mode, procErr.Category)
				return nil, procErr
			}
			lib.cleanupEmptyParents(filepath.Dir(stageFull))
			return collided, nil
		}
		if _, terr := lib.Trash.Deposit(stageFull, model.CategoryDuplicate); terr != nil {
			lib.Log.Warn("trash deposit failed", "file", stageFull, "err", terr)
		}
		lib.cleanupEmptyParents(filepath.Dir(stageFull))
		return nil, NewProcessError(src, model.CategoryDuplicate,
			fmt.Sprintf("duplicate after normalization of %s", collided.CurrentPath), nil)
	}

	// The canonical name embeds the hash prefix, so a changed hash means
	// a changed filename; the path always derives from the final hash.
	finalRel := stageRel
	if postHash != preHash {
		newRel := ResolveCollision(lib.Root, DerivePath(capturedAt, postHash, ext))
		newFull := lib.abs(newRel)
		if err := ensureDir(newFull); err != nil {
			procErr := Categorize(src, err)
			lib.rollbackStage(stageFull, mode, procErr.Category)
			return nil, procErr
		}
		if err := os.Rename(stageFull, newFull); err != nil {
			procErr := Categorize(src, err)
			lib.rollbackStage(stageFull, mode, procErr.Category)
			return nil, procErr
		}
		lib.cleanupEmptyParents(filepath.Dir(stageFull))
		finalRel = newRel
	}
	finalFull := lib.abs(finalRel)

	fi, err := os.Stat(finalFull)
	if err != nil {
		return nil, Categorize(src, err)
	}
	width, height := Dimensions(finalFull, fileType)

	asset := &model.MediaAsset{
		ContentHash:      postHash,
		CurrentPath:      finalRel,
		OriginalFilename: filepath.Base(src),
		CapturedAt:       capturedAt,
		FileType:         fileType,
		Width:            width,
		Height:           height,
		ByteSize:         fi.Size(),
	}

	// Commit ordering: filesystem first, record second; the artifact is
	// rolled back if the record write fails, so the pair stays atomic.
	if err := lib.Store.InsertAsset(asset); err != nil {
		lib.rollbackStage(finalFull, mode, model.CategoryIO)
		return nil, NewProcessError(src, model.CategoryIO, "asset record write failed", err)
	}
	return asset, nil
}

// rejectAsDuplicate trashes the source of a pre-check duplicate.
func (lib *Library) rejectAsDuplicate(src string, existing *model.MediaAsset) *ProcessError {
	if _, err := lib.Trash.Deposit(src, model.CategoryDuplicate); err != nil {
		lib.Log.Warn("trash deposit failed", "file", src, "err", err)
	}
	return NewProcessError(src, model.CategoryDuplicate,
		fmt.Sprintf("content already in library as %s", existing.CurrentPath), nil)
}

// rollbackStage disposes of a staged file after a failure.
func (lib *Library) rollbackStage(stageFull string, mode StageMode, category model.Category) {
	if mode == StageCopy {
		os.Remove(stageFull)
	} else {
		if _, err := lib.Trash.Deposit(stageFull, category); err != nil {
			lib.Log.Warn("trash deposit failed", "file", stageFull, "err", err)
		}
	}
	lib.cleanupEmptyParents(filepath.Dir(stageFull))
}

// ResolveCollisionFor behaves like ResolveCollision but treats relPath as
// free when the occupying file is the source itself, which happens when a
// tree is terraformed in place and a file already sits at its canonical
// location.
func ResolveCollisionFor(root, relPath, src string) string {
	full := filepath.Join(root, relPath)
	if sameFilePath(src, full) {
		return relPath
	}
	return ResolveCollision(root, relPath)
}

func sameFilePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

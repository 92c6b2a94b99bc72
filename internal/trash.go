package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lumen/internal/model"
)

// TrashDirName is the hidden categorized trash under the library root.
const TrashDirName = ".trash"

// Trash moves rejected files into <library>/.trash/<category>/ and
// records a TrashEntry. Files land here instead of being discarded so a
// rejection is never silent data loss.
type Trash struct {
	root  string
	store AssetStore
}

func NewTrash(libraryRoot string, store AssetStore) *Trash {
	return &Trash{root: libraryRoot, store: store}
}

// Deposit moves src into the categorized trash and returns the trash
// path relative to the library root.
func (t *Trash) Deposit(src string, category model.Category) (string, error) {
	dir := filepath.Join(t.root, TrashDirName, string(category))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create trash directory: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(src))
	dest = filepath.Join(t.root, ResolveCollision(t.root, mustRel(t.root, dest)))

	if err := moveFile(src, dest); err != nil {
		return "", fmt.Errorf("failed to move %s to trash: %w", src, err)
	}

	rel := mustRel(t.root, dest)
	entry := &model.TrashEntry{
		OriginalPath: src,
		TrashPath:    rel,
		Category:     category,
		TrashedAt:    time.Now(),
	}
	if err := t.store.InsertTrashEntry(entry); err != nil {
		return rel, fmt.Errorf("trash entry not recorded for %s: %w", src, err)
	}
	return rel, nil
}

// mustRel is Rel with an absolute-path fallback for sources outside root.
func mustRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Library bundles everything an operation needs: root path, asset store,
// trash, metadata tooling and config. It is passed explicitly into every
// operation; there is no ambient global library state.
type Library struct {
	Root      string
	Store     AssetStore
	Trash     *Trash
	Cfg       *Config
	Kinds     *MediaKinds
	Extractor *Extractor
	Norm      Normalizer
	Log       *slog.Logger
}

// NewLibrary wires a Library with the production tool normalizer.
func NewLibrary(root string, store AssetStore, cfg *Config, log *slog.Logger) *Library {
	kinds := NewMediaKinds(cfg)
	ex := NewExtractor(kinds)
	return &Library{
		Root:      root,
		Store:     store,
		Trash:     NewTrash(root, store),
		Cfg:       cfg,
		Kinds:     kinds,
		Extractor: ex,
		Norm:      NewToolNormalizer(cfg, kinds, ex, log),
		Log:       log,
	}
}

func (lib *Library) Close() {
	if lib.Extractor != nil {
		lib.Extractor.Close()
	}
}

// abs resolves a library-relative path.
func (lib *Library) abs(rel string) string {
	return filepath.Join(lib.Root, rel)
}

// cleanupEmptyParents removes now-empty directories from dir upward,
// stopping at the library root. Only truly empty directories go; cleanup
// failures never fail the operation that triggered them.
func (lib *Library) cleanupEmptyParents(dir string) {
	rootAbs, err := filepath.Abs(lib.Root)
	if err != nil {
		return
	}

	for {
		dirAbs, err := filepath.Abs(dir)
		if err != nil || dirAbs == rootAbs || !insideDir(rootAbs, dirAbs) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func insideDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lumen/internal/model"
)

// fakeStore is an in-memory AssetStore for engine tests.
type fakeStore struct {
	assets map[int64]*model.MediaAsset
	trash  []model.TrashEntry
	nextID int64

	insertErr error // injected failure for InsertAsset
	updateErr error // injected failure for UpdateAsset
}

func newFakeStore() *fakeStore {
	return &fakeStore{assets: make(map[int64]*model.MediaAsset), nextID: 1}
}

func (s *fakeStore) FindActiveByHash(hash string) (*model.MediaAsset, error) {
	return s.FindActiveByHashExcluding(hash, 0)
}

func (s *fakeStore) FindActiveByHashExcluding(hash string, excludeID int64) (*model.MediaAsset, error) {
	for _, a := range s.assets {
		if a.ContentHash == hash && a.ID != excludeID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetAsset(id int64) (*model.MediaAsset, error) {
	a, ok := s.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) InsertAsset(a *model.MediaAsset) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	a.ID = s.nextID
	s.nextID++
	cp := *a
	s.assets[a.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateAsset(a *model.MediaAsset) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.assets[a.ID]; !ok {
		return fmt.Errorf("asset %d not found", a.ID)
	}
	cp := *a
	s.assets[a.ID] = &cp
	return nil
}

func (s *fakeStore) DeleteAsset(id int64) error {
	delete(s.assets, id)
	return nil
}

func (s *fakeStore) ListAssetPaths() (map[string]int64, error) {
	paths := make(map[string]int64, len(s.assets))
	for id, a := range s.assets {
		paths[a.CurrentPath] = id
	}
	return paths, nil
}

func (s *fakeStore) InsertTrashEntry(e *model.TrashEntry) error {
	e.ID = int64(len(s.trash) + 1)
	s.trash = append(s.trash, *e)
	return nil
}

// fakeNormalizer rewrites a file to a canonical form derived from its
// payload and the target timestamp. Fixture files carry content like
// "payload:X;noise:Y"; normalization keeps only the payload, so two
// sources with the same payload but different noise become identical
// bytes, which is exactly how a real metadata rewrite converges.
type fakeNormalizer struct {
	err   error // injected failure
	calls int
}

func (n *fakeNormalizer) Normalize(_ context.Context, path string, ts time.Time) error {
	n.calls++
	if n.err != nil {
		return n.err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	payload := string(data)
	if i := strings.IndexAny(payload, ";@"); i >= 0 {
		payload = payload[:i]
	}
	out := fmt.Sprintf("%s@%s", payload, ts.Format(ExifTimeFormat))
	return os.WriteFile(path, []byte(out), 0644)
}

func testConfig() *Config {
	return &Config{
		ImageExt:            []string{".jpg", ".jpeg", ".png", ".heic"},
		VideoExt:            []string{".mov", ".mp4", ".avi"},
		RawExt:              []string{".cr2", ".nef", ".dng"},
		UnsupportedExt:      []string{".avi", ".mpg"},
		ImageToolTimeoutSec: 5,
		VideoToolTimeoutSec: 5,
		MinFreeSpacePct:     1,
		ProgressEveryFiles:  1,
		ProgressEveryMillis: 1,
	}
}

// newTestLibrary builds a Library over a temp root with the in-memory
// store and the fake normalizer. No external tool is ever invoked.
func newTestLibrary(t *testing.T) (*Library, *fakeStore, *fakeNormalizer) {
	t.Helper()

	root := t.TempDir()
	store := newFakeStore()
	cfg := testConfig()
	kinds := NewMediaKinds(cfg)
	norm := &fakeNormalizer{}

	lib := &Library{
		Root:      root,
		Store:     store,
		Trash:     NewTrash(root, store),
		Cfg:       cfg,
		Kinds:     kinds,
		Extractor: &Extractor{kinds: kinds},
		Norm:      norm,
		Log:       NopLogger(),
	}
	return lib, store, norm
}

// writeFixture creates a fake media file whose capture date resolves to
// mtime, since the content carries no readable metadata.
func writeFixture(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

// drainEvents consumes an event channel and returns everything plus the
// final stats.
func drainEvents(t *testing.T, ch <-chan Event) ([]Event, OpStats) {
	t.Helper()
	var events []Event
	var stats OpStats
	for ev := range ch {
		events = append(events, ev)
		stats = ev.Stats
	}
	return events, stats
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

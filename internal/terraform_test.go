package internal

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"lumen/internal/model"
)

// stubTools puts no-op exiftool/ffmpeg/ffprobe executables on PATH so the
// preflight tool check passes without the real binaries. The fake
// normalizer guarantees they are never actually run.
func stubTools(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	for _, tool := range []string{"exiftool", "ffmpeg", "ffprobe"} {
		path := filepath.Join(dir, tool)
		if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestTerraform(t *testing.T) {
	stubTools(t)
	lib, store, _ := newTestLibrary(t)

	// A messy tree inside the library root: two distinct photos, one
	// byte-level duplicate pair, one RAW file.
	writeFixture(t, filepath.Join(lib.Root, "Camera Uploads", "IMG_1.jpg"), "payload:A;noise:1", fixtureDate)
	writeFixture(t, filepath.Join(lib.Root, "Camera Uploads", "Sub", "IMG_2.jpg"), "payload:B;noise:1", fixtureDate)
	writeFixture(t, filepath.Join(lib.Root, "backup", "IMG_1-copy.jpg"), "payload:A;noise:2", fixtureDate)
	writeFixture(t, filepath.Join(lib.Root, "backup", "shot.cr2"), "rawbytes", fixtureDate)

	events, err := lib.Terraform(context.Background(), lib.Root)
	if err != nil {
		t.Fatalf("Terraform failed to start: %v", err)
	}
	_, stats := drainEvents(t, events)

	if stats.Imported != 2 {
		t.Errorf("imported = %d, want 2", stats.Imported)
	}
	if stats.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", stats.Duplicates)
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1 (the RAW file)", stats.Skipped)
	}
	if len(store.assets) != 2 {
		t.Errorf("store has %d assets, want 2", len(store.assets))
	}

	// The messy folders are consumed entirely.
	for _, dir := range []string{"Camera Uploads", "backup"} {
		if fileExists(filepath.Join(lib.Root, dir)) {
			t.Errorf("source folder %s not removed", dir)
		}
	}

	// RAW went to the trash, not the layout.
	if !fileExists(filepath.Join(lib.Root, TrashDirName, "raw_skipped", "shot.cr2")) {
		t.Error("RAW file missing from trash")
	}

	// The run's manifest is complete, so nothing resumes from it.
	if prior, _ := LatestIncompleteManifest(lib.Root); prior != "" {
		t.Errorf("finished run left incomplete manifest %q", prior)
	}

	// The lock is released.
	if fileExists(filepath.Join(lib.Root, LockFileName)) {
		t.Error("lock file not released")
	}
}

func TestTerraformRerunLeavesLibraryIntact(t *testing.T) {
	stubTools(t)
	lib, store, norm := newTestLibrary(t)

	writeFixture(t, filepath.Join(lib.Root, "inbox", "a.jpg"), "payload:A;noise:1", fixtureDate)
	writeFixture(t, filepath.Join(lib.Root, "inbox", "b.jpg"), "payload:B;noise:1", fixtureDate)

	events, err := lib.Terraform(context.Background(), lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	_, first := drainEvents(t, events)
	if first.Imported != 2 {
		t.Fatalf("first run imported = %d, want 2", first.Imported)
	}
	rewrites := norm.calls

	// A second pass over the organized tree finds every file already at
	// its recorded location and leaves all of it alone.
	events, err = lib.Terraform(context.Background(), lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	_, second := drainEvents(t, events)

	if second.Skipped != 2 || second.Imported != 0 || second.Duplicates != 0 {
		t.Errorf("second run stats = %+v, want 2 skipped and nothing else", second)
	}
	if norm.calls != rewrites {
		t.Error("second run must not rewrite organized files")
	}
	if len(store.trash) != 0 {
		t.Errorf("second run trashed %d files", len(store.trash))
	}
	if len(store.assets) != 2 {
		t.Errorf("store has %d assets, want 2", len(store.assets))
	}
	for _, a := range store.assets {
		if !fileExists(filepath.Join(lib.Root, a.CurrentPath)) {
			t.Errorf("asset file %s missing after re-run", a.CurrentPath)
		}
	}
}

func TestTerraformRestoresEditedFile(t *testing.T) {
	stubTools(t)
	lib, store, _ := newTestLibrary(t)

	asset := importFixture(t, lib, "a.jpg", "payload:A;noise:1", fixtureDate)
	committed := filepath.Join(lib.Root, asset.CurrentPath)
	want, err := os.ReadFile(committed)
	if err != nil {
		t.Fatal(err)
	}

	// An out-of-band edit changes the bytes without touching the record.
	writeFixture(t, committed, "payload:A;edited", fixtureDate)

	events, err := lib.Terraform(context.Background(), lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	_, stats := drainEvents(t, events)

	if stats.Skipped != 1 || stats.Duplicates != 0 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 1 skipped", stats)
	}
	got, err := os.ReadFile(committed)
	if err != nil {
		t.Fatalf("asset file gone from %s: %v", asset.CurrentPath, err)
	}
	if string(got) != string(want) {
		t.Errorf("file = %q, want the record's bytes %q", got, want)
	}
	if len(store.trash) != 0 {
		t.Errorf("trash entries = %+v, want none", store.trash)
	}
	if len(store.assets) != 1 {
		t.Errorf("store has %d assets, want 1", len(store.assets))
	}
}

func TestTerraformCancelledRunResumes(t *testing.T) {
	stubTools(t)
	lib, store, _ := newTestLibrary(t)

	src := filepath.Join(lib.Root, "old", "a.jpg")
	writeFixture(t, src, "payload:A;noise:1", fixtureDate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events, err := lib.Terraform(ctx, lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	drainEvents(t, events)

	if !fileExists(src) {
		t.Fatal("cancelled run must not touch files")
	}
	prior, err := LatestIncompleteManifest(lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	if prior == "" {
		t.Fatal("cancelled run must leave its manifest incomplete")
	}

	// The next run picks up where the cancelled one stopped.
	events, err = lib.Terraform(context.Background(), lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	_, stats := drainEvents(t, events)
	if stats.Imported != 1 {
		t.Errorf("imported = %d, want 1", stats.Imported)
	}
	if len(store.assets) != 1 {
		t.Errorf("store has %d assets, want 1", len(store.assets))
	}
}

func TestTerraformResume(t *testing.T) {
	stubTools(t)
	lib, store, _ := newTestLibrary(t)

	a := filepath.Join(lib.Root, "old", "a.jpg")
	b := filepath.Join(lib.Root, "old", "b.jpg")
	writeFixture(t, a, "payload:A;noise:1", fixtureDate)
	writeFixture(t, b, "payload:B;noise:1", fixtureDate)

	// A prior run recorded a as done, then died without completing.
	m, err := NewManifest(lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	m.Start("dead-run", lib.Root, 2)
	m.Processing(a)
	m.Success(a, "somewhere", "somehash")
	m.Close()

	events, err := lib.Terraform(context.Background(), lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	_, stats := drainEvents(t, events)

	// a is skipped without being touched; only b is processed.
	if stats.Skipped != 1 || stats.Imported != 1 {
		t.Errorf("stats = %+v, want 1 skipped + 1 imported", stats)
	}
	if !fileExists(a) {
		t.Error("resumed file must not be re-processed")
	}
	if len(store.assets) != 1 {
		t.Errorf("store has %d assets, want 1", len(store.assets))
	}
}

func TestTerraformRefusesHeldLock(t *testing.T) {
	stubTools(t)
	lib, _, _ := newTestLibrary(t)
	writeFixture(t, filepath.Join(lib.Root, "a.jpg"), "payload:A;noise:1", fixtureDate)

	lock, err := AcquireRunLock(lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if _, err := lib.Terraform(context.Background(), lib.Root); err == nil {
		t.Error("a held lock must abort the run before any mutation")
	}
	if !fileExists(filepath.Join(lib.Root, "a.jpg")) {
		t.Error("aborted run must not touch files")
	}
}

func TestTerraformMissingTarget(t *testing.T) {
	stubTools(t)
	lib, _, _ := newTestLibrary(t)

	if _, err := lib.Terraform(context.Background(), filepath.Join(lib.Root, "nope")); err == nil {
		t.Error("missing target directory must fail fast")
	}
}

func TestTerraformOneRawSkip(t *testing.T) {
	lib, store, _ := newTestLibrary(t)

	raw := filepath.Join(lib.Root, "shoot", "img.nef")
	writeFixture(t, raw, "rawbytes", fixtureDate)

	m, err := NewManifest(lib.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	ch := make(chan Event, 64)
	em := newEmitter(ch, lib.Cfg)
	var stats OpStats
	lib.terraformOne(context.Background(), raw, m, em, &stats)
	close(ch)

	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}
	if fileExists(raw) {
		t.Error("RAW file must leave the tree")
	}
	if len(store.trash) != 1 || store.trash[0].Category != model.CategoryRawSkipped {
		t.Errorf("trash entries = %+v, want one raw_skipped", store.trash)
	}

	// The manifest records the skip, so a resume never revisits it.
	done, err := LoadProcessedSet(m.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !done[raw] {
		t.Error("skipped RAW missing from processed set")
	}

	// The processing record lands before the file moves, the terminal
	// record after.
	procIdx, skipIdx := -1, -1
	for i, rec := range readManifest(t, m.Path) {
		if rec.OriginalPath != raw {
			continue
		}
		switch rec.Event {
		case "processing":
			if procIdx == -1 {
				procIdx = i
			}
		case "skipped":
			skipIdx = i
		}
	}
	if procIdx == -1 || skipIdx == -1 || procIdx > skipIdx {
		t.Errorf("manifest order: processing=%d skipped=%d, want processing first", procIdx, skipIdx)
	}
}

func readManifest(t *testing.T, path string) []ManifestRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var recs []ManifestRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec ManifestRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatal(err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestRemoveEmptyDirs(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	// Nested empties cascade; .DS_Store does not keep a dir alive.
	os.MkdirAll(filepath.Join(lib.Root, "a", "b", "c"), 0755)
	os.MkdirAll(filepath.Join(lib.Root, "junk"), 0755)
	os.WriteFile(filepath.Join(lib.Root, "junk", ".DS_Store"), []byte("x"), 0644)

	// A dir with real content survives; so do hidden internals.
	writeFixture(t, filepath.Join(lib.Root, "keep", "f.jpg"), "x", fixtureDate)
	os.MkdirAll(filepath.Join(lib.Root, TrashDirName, "duplicate"), 0755)

	removed := lib.removeEmptyDirs(lib.Root)
	if removed != 4 {
		t.Errorf("removed = %d, want 4", removed)
	}
	for _, gone := range []string{"a", "junk"} {
		if fileExists(filepath.Join(lib.Root, gone)) {
			t.Errorf("%s should be removed", gone)
		}
	}
	if !fileExists(filepath.Join(lib.Root, "keep", "f.jpg")) {
		t.Error("non-empty dir must survive")
	}
	if !fileExists(filepath.Join(lib.Root, TrashDirName)) {
		t.Error("hidden internals must survive")
	}
}

func TestAcquireRunLock(t *testing.T) {
	root := t.TempDir()

	lock, err := AcquireRunLock(root)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	// Held by a live process: refused.
	if _, err := AcquireRunLock(root); err == nil {
		t.Error("second acquire must fail while held")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	lock, err = AcquireRunLock(root)
	if err != nil {
		t.Fatalf("re-acquire after release failed: %v", err)
	}
	lock.Release()
}

func TestAcquireRunLockReclaimsStale(t *testing.T) {
	root := t.TempDir()

	// A lock left behind by a pid that cannot exist anymore.
	if err := os.WriteFile(filepath.Join(root, LockFileName), []byte("999999999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	lock, err := AcquireRunLock(root)
	if err != nil {
		t.Fatalf("stale lock not reclaimed: %v", err)
	}
	lock.Release()
}

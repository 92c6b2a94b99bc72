package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lumen/internal/model"
)

func TestManifestRoundTrip(t *testing.T) {
	root := t.TempDir()

	m, err := NewManifest(root)
	if err != nil {
		t.Fatalf("NewManifest failed: %v", err)
	}

	m.Start("run-1", "/photos", 3)
	m.Processing("/photos/a.jpg")
	m.Success("/photos/a.jpg", "2024/2024-03-15/img_20240315_aaaaaaaa.jpg", "aaaa")
	m.Processing("/photos/b.jpg")
	m.Failed("/photos/b.jpg", model.CategoryCorrupted, "not a valid JPG")
	m.Skipped("/photos/c.cr2", model.CategoryRawSkipped, "RAW format not reorganized")
	m.Close()

	done, err := LoadProcessedSet(m.Path)
	if err != nil {
		t.Fatalf("LoadProcessedSet failed: %v", err)
	}
	for _, p := range []string{"/photos/a.jpg", "/photos/b.jpg", "/photos/c.cr2"} {
		if !done[p] {
			t.Errorf("%s missing from processed set", p)
		}
	}
	if len(done) != 3 {
		t.Errorf("processed set size = %d, want 3", len(done))
	}
}

func TestLoadProcessedSetIgnoresInFlight(t *testing.T) {
	root := t.TempDir()

	m, err := NewManifest(root)
	if err != nil {
		t.Fatal(err)
	}
	m.Start("run-1", "/photos", 2)
	m.Processing("/photos/a.jpg")
	m.Success("/photos/a.jpg", "x", "h")
	// b.jpg got its processing record, then the run died.
	m.Processing("/photos/b.jpg")
	m.Close()

	done, err := LoadProcessedSet(m.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !done["/photos/a.jpg"] {
		t.Error("completed file missing from set")
	}
	if done["/photos/b.jpg"] {
		t.Error("in-flight file must not count as processed")
	}
}

func TestLoadProcessedSetToleratesTornLine(t *testing.T) {
	root := t.TempDir()

	m, err := NewManifest(root)
	if err != nil {
		t.Fatal(err)
	}
	m.Success("/photos/a.jpg", "x", "h")
	m.Close()

	// Simulate a crash mid-write: a torn trailing line.
	f, err := os.OpenFile(m.Path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"event":"succ`)
	f.Close()

	done, err := LoadProcessedSet(m.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !done["/photos/a.jpg"] {
		t.Error("valid records before the torn line must survive")
	}
}

func TestLatestIncompleteManifest(t *testing.T) {
	root := t.TempDir()

	// No manifests at all.
	got, err := LatestIncompleteManifest(root)
	if err != nil || got != "" {
		t.Fatalf("empty library: got %q, %v", got, err)
	}

	// A finished run.
	m1, _ := NewManifest(root)
	m1.Start("run-1", "/p", 1)
	m1.Success("/p/a.jpg", "x", "h")
	m1.Complete(OpStats{Imported: 1})
	m1.Close()

	got, err = LatestIncompleteManifest(root)
	if err != nil || got != "" {
		t.Fatalf("complete run must not resume: got %q, %v", got, err)
	}

	// A later, interrupted run. Manifest names carry second-resolution
	// timestamps, so force distinct names.
	time.Sleep(1100 * time.Millisecond)
	m2, _ := NewManifest(root)
	m2.Start("run-2", "/p", 2)
	m2.Success("/p/b.jpg", "y", "h2")
	m2.Close() // no complete record

	got, err = LatestIncompleteManifest(root)
	if err != nil {
		t.Fatal(err)
	}
	if got != m2.Path {
		t.Errorf("LatestIncompleteManifest = %q, want %q", got, m2.Path)
	}

	// Non-manifest files in the directory are ignored.
	os.WriteFile(filepath.Join(root, ManifestDirName, "notes.txt"), []byte("x"), 0644)
	got, _ = LatestIncompleteManifest(root)
	if got != m2.Path {
		t.Errorf("stray file changed result: %q", got)
	}
}

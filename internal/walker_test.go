package internal

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestCollectMediaFiles(t *testing.T) {
	root := t.TempDir()
	kinds := NewMediaKinds(testConfig())

	mk := func(rel string) string {
		full := filepath.Join(root, rel)
		os.MkdirAll(filepath.Dir(full), 0755)
		os.WriteFile(full, []byte("x"), 0644)
		return full
	}

	want := []string{
		mk("a.jpg"),
		mk("sub/b.mov"),
		mk("sub/deep/c.cr2"),
	}
	sort.Strings(want)

	mk("notes.txt")                    // not media
	mk(".hidden.jpg")                  // hidden file
	mk(".trash/duplicate/trashed.jpg") // hidden dir subtree
	os.Symlink(want[0], filepath.Join(root, "link.jpg"))

	got, err := CollectMediaFiles(root, kinds)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d files %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Deterministic ordering across runs.
	again, _ := CollectMediaFiles(root, kinds)
	for i := range got {
		if got[i] != again[i] {
			t.Fatal("ordering not stable")
		}
	}
}

func TestMediaKindClassification(t *testing.T) {
	kinds := NewMediaKinds(testConfig())

	if !kinds.IsMedia("/x/IMG.JPG") {
		t.Error("extension match must be case-insensitive")
	}
	if kinds.IsMedia("/x/readme.txt") {
		t.Error("txt is not media")
	}
	if !kinds.IsRaw("/x/shot.CR2") {
		t.Error("CR2 is RAW")
	}
	if !kinds.IsVideo("/x/clip.mov") {
		t.Error("mov is video")
	}
	if !kinds.IsUnsupportedVideo("/x/old.avi") {
		t.Error("avi is declared unwritable")
	}
	if got := kinds.FileTypeOf("/x/clip.mp4"); got != "video" {
		t.Errorf("FileTypeOf mp4 = %s", got)
	}
	if got := kinds.FileTypeOf("/x/shot.nef"); got != "image" {
		t.Errorf("FileTypeOf nef = %s, RAW counts as image", got)
	}
}

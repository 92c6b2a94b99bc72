package internal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"lumen/internal/model"
)

// ManifestDirName is the hidden per-library directory holding one
// append-only manifest file per terraform run.
const ManifestDirName = ".manifests"

// ManifestRecord is a single JSONL line in a terraform manifest. A record
// is written before every risky mutation and again after it, so a crash
// mid-run always leaves enough log to compute the already-done set.
type ManifestRecord struct {
	Event string `json:"event"` // start|processing|success|failed|skipped|complete
	Ts    string `json:"ts"`

	OriginalPath string         `json:"original_path,omitempty"`
	NewPath      string         `json:"new_path,omitempty"`
	Hash         string         `json:"hash,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Category     model.Category `json:"category,omitempty"`

	// start/complete fields
	RunID      string `json:"run_id,omitempty"`
	Root       string `json:"root,omitempty"`
	TotalFiles int    `json:"total_files,omitempty"`
	Processed  int    `json:"processed,omitempty"`
	Duplicates int    `json:"duplicates,omitempty"`
	Errors     int    `json:"errors,omitempty"`
}

// Manifest appends structured records to a run-scoped JSONL file,
// fsyncing after every line.
type Manifest struct {
	Path string
	f    *os.File
}

// NewManifest creates .manifests/terraform-<start timestamp>.jsonl under
// the library root.
func NewManifest(libraryRoot string) (*Manifest, error) {
	dir := filepath.Join(libraryRoot, ManifestDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("terraform-%s.jsonl", time.Now().Format("2006-01-02-150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest file: %w", err)
	}

	return &Manifest{Path: path, f: f}, nil
}

func (m *Manifest) Start(runID, root string, totalFiles int) error {
	return m.write(ManifestRecord{Event: "start", RunID: runID, Root: root, TotalFiles: totalFiles})
}

func (m *Manifest) Processing(originalPath string) error {
	return m.write(ManifestRecord{Event: "processing", OriginalPath: originalPath})
}

func (m *Manifest) Success(originalPath, newPath, hash string) error {
	return m.write(ManifestRecord{Event: "success", OriginalPath: originalPath, NewPath: newPath, Hash: hash})
}

func (m *Manifest) Failed(originalPath string, category model.Category, reason string) error {
	return m.write(ManifestRecord{Event: "failed", OriginalPath: originalPath, Category: category, Reason: reason})
}

func (m *Manifest) Skipped(originalPath string, category model.Category, reason string) error {
	return m.write(ManifestRecord{Event: "skipped", OriginalPath: originalPath, Category: category, Reason: reason})
}

func (m *Manifest) Complete(stats OpStats) error {
	return m.write(ManifestRecord{
		Event:      "complete",
		Processed:  stats.Imported,
		Duplicates: stats.Duplicates,
		Errors:     stats.Errors,
	})
}

func (m *Manifest) Close() error {
	if m.f != nil {
		return m.f.Close()
	}
	return nil
}

func (m *Manifest) write(rec ManifestRecord) error {
	rec.Ts = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest record: %w", err)
	}
	if _, err := m.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to manifest: %w", err)
	}
	// Flush to ensure data is written
	return m.f.Sync()
}

// LoadProcessedSet reads a manifest and returns the source paths that
// reached a terminal record (success, failed or skipped). Files in the
// set need no re-reading of content on resume.
func LoadProcessedSet(manifestPath string) (map[string]bool, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	done := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec ManifestRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // torn tail line from a crash
		}
		switch rec.Event {
		case "success", "failed", "skipped":
			done[rec.OriginalPath] = true
		}
	}
	return done, scanner.Err()
}

// LatestIncompleteManifest returns the newest manifest under root that
// has no complete record, or "" when every prior run finished.
func LatestIncompleteManifest(libraryRoot string) (string, error) {
	dir := filepath.Join(libraryRoot, ManifestDirName)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".jsonl" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names) // timestamp-named, lexicographic == chronological

	latest := filepath.Join(dir, names[len(names)-1])
	complete, err := manifestIsComplete(latest)
	if err != nil {
		return "", err
	}
	if complete {
		return "", nil
	}
	return latest, nil
}

func manifestIsComplete(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	complete := false
	for scanner.Scan() {
		var rec ManifestRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Event == "complete" {
			complete = true
		}
	}
	return complete, scanner.Err()
}

// Package store persists asset and trash records in a SQLite database
// living next to the media files it describes.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite" // SQLite driver

	"lumen/internal/model"
	"lumen/internal/store/migrations"
)

// timeLayout matches the canonical embedded-timestamp format so raw rows
// stay human-readable next to exiftool output.
const timeLayout = "2006:01:02 15:04:05"

// Store implements the engine's AssetStore interface on SQLite.
type Store struct {
	db   *dbx.DB
	path string
}

// Open opens (creating if needed) the library database and brings its
// schema up to date. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := dbx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single-writer discipline: one connection, generous lock wait.
	db.DB().SetMaxOpenConns(1)
	if _, err := db.NewQuery("PRAGMA busy_timeout = 5000").Execute(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.NewQuery("PRAGMA journal_mode = WAL").Execute(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := migrations.Migrate(db.DB()); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type assetRow struct {
	ID               int64  `db:"id"`
	ContentHash      string `db:"content_hash"`
	CurrentPath      string `db:"current_path"`
	OriginalFilename string `db:"original_filename"`
	CapturedAt       string `db:"captured_at"`
	FileType         string `db:"file_type"`
	Width            int    `db:"width"`
	Height           int    `db:"height"`
	ByteSize         int64  `db:"byte_size"`
}

func (r *assetRow) toModel() (*model.MediaAsset, error) {
	capturedAt, err := time.ParseInLocation(timeLayout, r.CapturedAt, time.Local)
	if err != nil {
		return nil, fmt.Errorf("asset %d has malformed captured_at %q: %w", r.ID, r.CapturedAt, err)
	}
	return &model.MediaAsset{
		ID:               r.ID,
		ContentHash:      r.ContentHash,
		CurrentPath:      r.CurrentPath,
		OriginalFilename: r.OriginalFilename,
		CapturedAt:       capturedAt,
		FileType:         model.FileType(r.FileType),
		Width:            r.Width,
		Height:           r.Height,
		ByteSize:         r.ByteSize,
	}, nil
}

func (s *Store) FindActiveByHash(hash string) (*model.MediaAsset, error) {
	var row assetRow
	err := s.db.Select().From("photos").
		Where(dbx.HashExp{"content_hash": hash}).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding asset by hash: %w", err)
	}
	return row.toModel()
}

func (s *Store) FindActiveByHashExcluding(hash string, excludeID int64) (*model.MediaAsset, error) {
	var row assetRow
	err := s.db.Select().From("photos").
		Where(dbx.HashExp{"content_hash": hash}).
		AndWhere(dbx.NewExp("id != {:id}", dbx.Params{"id": excludeID})).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding asset by hash: %w", err)
	}
	return row.toModel()
}

func (s *Store) GetAsset(id int64) (*model.MediaAsset, error) {
	var row assetRow
	err := s.db.Select().From("photos").
		Where(dbx.HashExp{"id": id}).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading asset %d: %w", id, err)
	}
	return row.toModel()
}

func (s *Store) InsertAsset(a *model.MediaAsset) error {
	res, err := s.db.Insert("photos", dbx.Params{
		"content_hash":      a.ContentHash,
		"current_path":      a.CurrentPath,
		"original_filename": a.OriginalFilename,
		"captured_at":       a.CapturedAt.Format(timeLayout),
		"file_type":         string(a.FileType),
		"width":             a.Width,
		"height":            a.Height,
		"byte_size":         a.ByteSize,
	}).Execute()
	if err != nil {
		return fmt.Errorf("inserting asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted asset id: %w", err)
	}
	a.ID = id
	return nil
}

func (s *Store) UpdateAsset(a *model.MediaAsset) error {
	_, err := s.db.Update("photos", dbx.Params{
		"content_hash":      a.ContentHash,
		"current_path":      a.CurrentPath,
		"original_filename": a.OriginalFilename,
		"captured_at":       a.CapturedAt.Format(timeLayout),
		"file_type":         string(a.FileType),
		"width":             a.Width,
		"height":            a.Height,
		"byte_size":         a.ByteSize,
	}, dbx.HashExp{"id": a.ID}).Execute()
	if err != nil {
		return fmt.Errorf("updating asset %d: %w", a.ID, err)
	}
	return nil
}

func (s *Store) DeleteAsset(id int64) error {
	if _, err := s.db.Delete("photos", dbx.HashExp{"id": id}).Execute(); err != nil {
		return fmt.Errorf("deleting asset %d: %w", id, err)
	}
	return nil
}

func (s *Store) ListAssetPaths() (map[string]int64, error) {
	var rows []struct {
		ID          int64  `db:"id"`
		CurrentPath string `db:"current_path"`
	}
	if err := s.db.Select("id", "current_path").From("photos").All(&rows); err != nil {
		return nil, fmt.Errorf("listing asset paths: %w", err)
	}

	paths := make(map[string]int64, len(rows))
	for _, r := range rows {
		paths[r.CurrentPath] = r.ID
	}
	return paths, nil
}

func (s *Store) InsertTrashEntry(e *model.TrashEntry) error {
	res, err := s.db.Insert("trash_entries", dbx.Params{
		"original_path": e.OriginalPath,
		"trash_path":    e.TrashPath,
		"category":      string(e.Category),
		"trashed_at":    e.TrashedAt.UTC().Format(time.RFC3339),
	}).Execute()
	if err != nil {
		return fmt.Errorf("inserting trash entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted trash entry id: %w", err)
	}
	e.ID = id
	return nil
}

// ListTrashEntries returns trash records, newest first.
func (s *Store) ListTrashEntries() ([]model.TrashEntry, error) {
	var rows []struct {
		ID           int64  `db:"id"`
		OriginalPath string `db:"original_path"`
		TrashPath    string `db:"trash_path"`
		Category     string `db:"category"`
		TrashedAt    string `db:"trashed_at"`
	}
	err := s.db.Select().From("trash_entries").OrderBy("id DESC").All(&rows)
	if err != nil {
		return nil, fmt.Errorf("listing trash entries: %w", err)
	}

	entries := make([]model.TrashEntry, 0, len(rows))
	for _, r := range rows {
		trashedAt, _ := time.Parse(time.RFC3339, r.TrashedAt)
		entries = append(entries, model.TrashEntry{
			ID:           r.ID,
			OriginalPath: r.OriginalPath,
			TrashPath:    r.TrashPath,
			Category:     model.Category(r.Category),
			TrashedAt:    trashedAt,
		})
	}
	return entries, nil
}

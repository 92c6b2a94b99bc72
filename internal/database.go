package internal

import "lumen/internal/model"

// AssetStore is the persistence contract the engine needs. Lookups by
// hash consider active assets only; trashed content never blocks a new
// import. A nil asset with a nil error means "not found".
type AssetStore interface {
	FindActiveByHash(hash string) (*model.MediaAsset, error)
	FindActiveByHashExcluding(hash string, excludeID int64) (*model.MediaAsset, error)
	GetAsset(id int64) (*model.MediaAsset, error)
	InsertAsset(a *model.MediaAsset) error
	UpdateAsset(a *model.MediaAsset) error
	DeleteAsset(id int64) error

	// ListAssetPaths maps current_path -> id for every active asset.
	ListAssetPaths() (map[string]int64, error)

	InsertTrashEntry(e *model.TrashEntry) error
}

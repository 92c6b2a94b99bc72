package model

import "time"

// FileType distinguishes still images from videos.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// Category classifies why a file was rejected, deduplicated or skipped
// instead of becoming (or staying) an active asset.
type Category string

const (
	CategoryDuplicate   Category = "duplicate"
	CategoryCorrupted   Category = "corrupted"
	CategoryUnsupported Category = "unsupported_format"
	CategoryPermission  Category = "permission_denied"
	CategoryTimeout     Category = "timeout"
	CategoryMissingTool Category = "missing_tool"
	CategoryRawSkipped  Category = "raw_skipped"
	CategoryIO          Category = "io_error"
)

// MediaAsset is a persisted library record. ContentHash is unique among
// active assets; CurrentPath is relative to the library root and always
// derivable from CapturedAt plus the hash prefix.
type MediaAsset struct {
	ID               int64
	ContentHash      string
	CurrentPath      string
	OriginalFilename string
	CapturedAt       time.Time
	FileType         FileType
	Width            int
	Height           int
	ByteSize         int64
}

// TrashEntry records a file that was moved to the categorized trash
// instead of being discarded. Entries are never mutated.
type TrashEntry struct {
	ID           int64
	OriginalPath string
	TrashPath    string
	Category     Category
	TrashedAt    time.Time
}

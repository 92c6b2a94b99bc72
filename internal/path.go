package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DeriveFolder returns the canonical library folder for a capture date:
// YYYY/YYYY-MM-DD.
func DeriveFolder(capturedAt time.Time) string {
	return filepath.Join(capturedAt.Format("2006"), capturedAt.Format("2006-01-02"))
}

// DeriveFilename returns the canonical filename for a capture date and
// content hash: img_YYYYMMDD_<hash prefix><ext>. Pure and idempotent.
func DeriveFilename(capturedAt time.Time, contentHash, ext string) string {
	return fmt.Sprintf("img_%s_%s%s",
		capturedAt.Format("20060102"), ShortHash(contentHash), strings.ToLower(ext))
}

// DerivePath returns the canonical relative path for an asset.
func DerivePath(capturedAt time.Time, contentHash, ext string) string {
	return filepath.Join(DeriveFolder(capturedAt), DeriveFilename(capturedAt, contentHash, ext))
}

// ResolveCollision returns relPath unchanged if the location under root is
// free, otherwise appends _1, _2, ... before the extension until a free
// name is found. Distinct content mapping to the same derived name is
// astronomically rare but must not clobber an existing file.
func ResolveCollision(root, relPath string) string {
	full := filepath.Join(root, relPath)
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return relPath
	}

	ext := filepath.Ext(relPath)
	base := strings.TrimSuffix(relPath, ext)
	for i := 1; ; i++ {
		try := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(filepath.Join(root, try)); os.IsNotExist(err) {
			return try
		}
	}
}

package internal

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"lumen/internal/model"
)

// Dimensions returns pixel width and height for images. Videos and
// undecodable formats report zero; dimensions are descriptive metadata,
// never a reason to reject a file.
func Dimensions(path string, fileType model.FileType) (int, int) {
	if fileType != model.FileTypeImage {
		return 0, 0
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

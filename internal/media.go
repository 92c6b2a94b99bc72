package internal

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"lumen/internal/model"
)

// extSet builds a lowercase lookup set from a configured extension list.
func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return set
}

// MediaKinds holds the extension classification derived from config.
type MediaKinds struct {
	image       map[string]bool
	video       map[string]bool
	raw         map[string]bool
	unsupported map[string]bool
}

func NewMediaKinds(cfg *Config) *MediaKinds {
	return &MediaKinds{
		image:       extSet(cfg.ImageExt),
		video:       extSet(cfg.VideoExt),
		raw:         extSet(cfg.RawExt),
		unsupported: extSet(cfg.UnsupportedExt),
	}
}

// IsMedia reports whether the path carries a known media extension.
func (k *MediaKinds) IsMedia(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return k.image[ext] || k.video[ext] || k.raw[ext]
}

func (k *MediaKinds) IsRaw(path string) bool {
	return k.raw[strings.ToLower(filepath.Ext(path))]
}

func (k *MediaKinds) IsVideo(path string) bool {
	return k.video[strings.ToLower(filepath.Ext(path))]
}

// IsUnsupportedVideo reports containers declared unwritable up front.
func (k *MediaKinds) IsUnsupportedVideo(path string) bool {
	return k.unsupported[strings.ToLower(filepath.Ext(path))]
}

// FileTypeOf classifies by extension. RAW counts as image for record
// purposes even though normalization skips it.
func (k *MediaKinds) FileTypeOf(path string) model.FileType {
	if k.IsVideo(path) {
		return model.FileTypeVideo
	}
	return model.FileTypeImage
}

// SniffContent checks that the file content looks like media at all.
// A file whose bytes are neither image/* nor video/* is rejected as
// corrupted before any external tool is spent on it.
func (k *MediaKinds) SniffContent(path string) *ProcessError {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Categorize(path, err)
	}
	mime := mt.String()
	if strings.HasPrefix(mime, "image/") || strings.HasPrefix(mime, "video/") {
		return nil
	}
	// Some valid QuickTime/HEIC files sniff as application/octet-stream
	// variants; only flat out text/archive content is rejected here.
	if strings.HasPrefix(mime, "text/") || strings.HasPrefix(mime, "application/zip") ||
		strings.HasPrefix(mime, "application/pdf") {
		return NewProcessError(path, model.CategoryCorrupted,
			"file content does not match a media format ("+mime+")", nil)
	}
	return nil
}

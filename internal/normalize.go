package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"lumen/internal/model"
)

// Normalizer rewrites a file's embedded capture timestamp in place.
// Implementations must leave the file byte-for-byte untouched when the
// write cannot be verified.
type Normalizer interface {
	Normalize(ctx context.Context, path string, ts time.Time) error
}

// ToolNormalizer shells out to exiftool (images) and ffmpeg (videos).
// Every write goes through a temp copy that replaces the original only
// after the new timestamp has been read back and matched.
type ToolNormalizer struct {
	cfg   *Config
	kinds *MediaKinds
	ex    *Extractor
	log   *slog.Logger
}

func NewToolNormalizer(cfg *Config, kinds *MediaKinds, ex *Extractor, log *slog.Logger) *ToolNormalizer {
	return &ToolNormalizer{cfg: cfg, kinds: kinds, ex: ex, log: log}
}

func (n *ToolNormalizer) Normalize(ctx context.Context, path string, ts time.Time) error {
	if n.kinds.IsRaw(path) {
		return NewProcessError(path, model.CategoryRawSkipped,
			"RAW formats are not rewritten", nil)
	}
	if n.kinds.IsUnsupportedVideo(path) {
		return NewProcessError(path, model.CategoryUnsupported,
			fmt.Sprintf("format %s does not support embedded metadata",
				strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))), nil)
	}
	if procErr := n.kinds.SniffContent(path); procErr != nil {
		return procErr
	}

	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + "_tmp" + ext

	var err error
	if n.kinds.IsVideo(path) {
		err = n.writeVideo(ctx, path, tmp, ts)
	} else {
		err = n.writeImage(ctx, path, tmp, ts)
	}
	if err != nil {
		os.Remove(tmp)
		return Categorize(path, err)
	}

	if err := n.verify(tmp, ts); err != nil {
		os.Remove(tmp)
		return Categorize(path, err)
	}

	// Original replaced only after the rewrite is verified.
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Categorize(path, err)
	}
	return nil
}

// writeImage rewrites the EXIF date fields on a temp copy via exiftool.
func (n *ToolNormalizer) writeImage(ctx context.Context, path, tmp string, ts time.Time) error {
	if err := copyFile(path, tmp); err != nil {
		return err
	}

	dateStr := ts.Format(ExifTimeFormat)
	return n.runTool(ctx, n.cfg.ImageToolTimeout(),
		"exiftool",
		"-DateTimeOriginal="+dateStr,
		"-CreateDate="+dateStr,
		"-ModifyDate="+dateStr,
		"-overwrite_original",
		"-P",
		tmp,
	)
}

// writeVideo remuxes with stream copy, stamping creation_time.
func (n *ToolNormalizer) writeVideo(ctx context.Context, path, tmp string, ts time.Time) error {
	isoDate := ts.Format("2006-01-02T15:04:05")
	return n.runTool(ctx, n.cfg.VideoToolTimeout(),
		"ffmpeg",
		"-i", path,
		"-metadata", "creation_time="+isoDate,
		"-codec", "copy",
		"-y",
		tmp,
	)
}

// runTool invokes an external binary with a per-call timeout and maps the
// failure modes that have structured signals before falling back to the
// stderr text adapter in Categorize.
func (n *ToolNormalizer) runTool(ctx context.Context, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s timeout after %s: %w", name, timeout, context.DeadlineExceeded)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s not found: %w", name, exec.ErrNotFound)
	}
	n.log.Debug("tool failed", "tool", name, "stderr", stderr.String())
	return fmt.Errorf("%s failed: %s", name, strings.TrimSpace(stderr.String()))
}

// verify reads the timestamp back from the rewritten temp file and
// compares at second precision. Video containers store naive wall-clock
// strings that probe back as UTC, so both renderings are accepted.
func (n *ToolNormalizer) verify(tmp string, ts time.Time) error {
	readBack, err := n.ex.EmbeddedDate(tmp)
	if err != nil {
		return fmt.Errorf("verification read failed: %w", err)
	}

	want := ts.Format(ExifTimeFormat)
	if readBack.Format(ExifTimeFormat) == want || readBack.UTC().Format(ExifTimeFormat) == want {
		return nil
	}
	return fmt.Errorf("verification failed: wrote %s, read back %s",
		want, readBack.Format(ExifTimeFormat))
}

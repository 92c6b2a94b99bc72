package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	barasher "github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
)

// ExifTimeFormat is the canonical embedded-timestamp layout.
const ExifTimeFormat = "2006:01:02 15:04:05"

// ffprobeTimeout bounds metadata reads; reads are cheap even for videos.
const ffprobeTimeout = 30 * time.Second

// Extractor reads embedded capture timestamps. The zero-cost goexif path
// handles JPEG/TIFF; a pooled exiftool process covers everything else.
type Extractor struct {
	kinds *MediaKinds
	et    *barasher.Exiftool // nil when exiftool is not installed
}

func NewExtractor(kinds *MediaKinds) *Extractor {
	ex := &Extractor{kinds: kinds}
	if et, err := barasher.NewExiftool(); err == nil {
		ex.et = et
	}
	return ex
}

func (ex *Extractor) Close() {
	if ex.et != nil {
		ex.et.Close()
	}
}

// CaptureDate returns the embedded capture timestamp, falling back to the
// file's modification time when no metadata date exists. An unreadable
// file is an error; a zero timestamp is never returned silently.
func (ex *Extractor) CaptureDate(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var ts time.Time
	if ex.kinds.IsVideo(path) {
		ts, _ = ex.videoCreationTime(path)
	} else {
		ts, _ = ex.imageCaptureDate(path)
	}
	if !ts.IsZero() {
		return ts, nil
	}
	return fi.ModTime(), nil
}

// EmbeddedDate reads only the embedded timestamp, with no mtime fallback.
// Used to verify normalization writes by reading back.
func (ex *Extractor) EmbeddedDate(path string) (time.Time, error) {
	if ex.kinds.IsVideo(path) {
		return ex.videoCreationTime(path)
	}
	return ex.imageCaptureDate(path)
}

func (ex *Extractor) imageCaptureDate(path string) (time.Time, error) {
	if ts, err := exifDateOriginal(path); err == nil {
		return ts, nil
	}
	return ex.exiftoolDate(path)
}

// exifDateOriginal extracts DateTimeOriginal with goexif (JPEG/TIFF only).
func exifDateOriginal(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, err
	}

	dateStr, err := tag.StringVal()
	if err != nil {
		return time.Time{}, err
	}

	return time.ParseInLocation(ExifTimeFormat, dateStr, time.Local)
}

// exiftoolDate tries DateTimeOriginal, then CreateDate, then ModifyDate
// via the pooled exiftool process.
func (ex *Extractor) exiftoolDate(path string) (time.Time, error) {
	if ex.et == nil {
		return time.Time{}, fmt.Errorf("exiftool not available")
	}

	fims := ex.et.ExtractMetadata(path)
	if len(fims) == 0 {
		return time.Time{}, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if fims[0].Err != nil {
		return time.Time{}, fims[0].Err
	}

	for _, tag := range []string{"DateTimeOriginal", "CreateDate", "ModifyDate"} {
		v, err := fims[0].GetString(tag)
		if err != nil || v == "" {
			continue
		}
		if ts, err := parseExifDate(v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("no embedded date in %s", path)
}

// videoCreationTime reads format_tags creation_time via ffprobe.
func (ex *Extractor) videoCreationTime(path string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ffprobeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_entries", "format_tags=creation_time",
		path,
	).Output()
	if err != nil {
		return time.Time{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var probe struct {
		Format struct {
			Tags struct {
				CreationTime string `json:"creation_time"`
			} `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return time.Time{}, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	if probe.Format.Tags.CreationTime == "" {
		return time.Time{}, fmt.Errorf("no creation_time in %s", path)
	}

	// ISO 8601: 2024-03-15T14:30:45.000000Z
	raw := probe.Format.Tags.CreationTime
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Local(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable creation_time %q in %s", raw, path)
}

// parseExifDate handles plain EXIF dates plus variants carrying
// sub-seconds or timezone offsets.
func parseExifDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{
		ExifTimeFormat,
		"2006:01:02 15:04:05.00",
		"2006:01:02 15:04:05-07:00",
		"2006:01:02 15:04:05Z",
	} {
		if ts, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable exif date %q", v)
}

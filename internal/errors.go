package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"lumen/internal/model"
)

// ProcessError is a categorized per-file failure. Callers dispose of the
// file based on Category, never on the raw error text.
type ProcessError struct {
	Path     string
	Category model.Category
	Message  string // user-facing reason
	Err      error  // underlying error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Path, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// NewProcessError builds a ProcessError with an explicit category.
func NewProcessError(path string, category model.Category, message string, err error) *ProcessError {
	if err == nil {
		err = errors.New(message)
	}
	return &ProcessError{Path: path, Category: category, Message: message, Err: err}
}

// Categorize converts an arbitrary error into a ProcessError. Structured
// sentinels are checked first; string matching against known tool output
// remains only as the last-resort adapter at the subprocess boundary.
func Categorize(path string, err error) *ProcessError {
	if err == nil {
		return nil
	}

	var procErr *ProcessError
	if errors.As(err, &procErr) {
		return procErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProcessError(path, model.CategoryTimeout, "processing timeout (file too large or slow storage)", err)
	case errors.Is(err, exec.ErrNotFound):
		return NewProcessError(path, model.CategoryMissingTool, "required external tool not installed", err)
	case errors.Is(err, os.ErrPermission):
		return NewProcessError(path, model.CategoryPermission, "permission denied", err)
	case errors.Is(err, fs.ErrNotExist):
		return NewProcessError(path, model.CategoryIO, "file disappeared during processing", err)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return NewProcessError(path, model.CategoryTimeout, "processing timeout (file too large or slow storage)", err)
	case strings.Contains(errStr, "not a valid") || strings.Contains(errStr, "corrupt") ||
		strings.Contains(errStr, "invalid data") || strings.Contains(errStr, "moov atom"):
		return NewProcessError(path, model.CategoryCorrupted, "file corrupted or invalid format", err)
	case strings.Contains(errStr, "exiftool") && strings.Contains(errStr, "not found"):
		return NewProcessError(path, model.CategoryMissingTool, "required tool not installed (exiftool)", err)
	case strings.Contains(errStr, "ffmpeg") && strings.Contains(errStr, "not found"):
		return NewProcessError(path, model.CategoryMissingTool, "required tool not installed (ffmpeg)", err)
	case strings.Contains(errStr, "permission") || strings.Contains(errStr, "denied"):
		return NewProcessError(path, model.CategoryPermission, "permission denied", err)
	case strings.Contains(errStr, "unsupported") || strings.Contains(errStr, "unknown format"):
		return NewProcessError(path, model.CategoryUnsupported, "file format not supported", err)
	default:
		// Anything unrecognized is filed as an I/O failure rather than
		// blamed on the file's format.
		return NewProcessError(path, model.CategoryIO, err.Error(), err)
	}
}

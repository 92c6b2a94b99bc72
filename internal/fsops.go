package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// copyFile copies src to dest, preserving the source's modification time
// so a later capture-date fallback still sees the original mtime.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}

	return os.Chtimes(dest, fi.ModTime(), fi.ModTime())
}

// copyFileAtomic copies a file atomically (copy temp → rename).
func copyFileAtomic(src, dest string) error {
	tmp := dest + ".tmp"
	if err := copyFile(src, tmp); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

// moveFile renames src to dest; a cross-device move degrades
// transparently to copy + delete-original.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := copyFileAtomic(src, dest); err != nil {
			return fmt.Errorf("cross-device copy %s: %w", src, err)
		}
		return os.Remove(src)
	}
	return err
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

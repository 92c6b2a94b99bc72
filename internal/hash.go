package internal

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// ShortHashLen is the hex prefix length used in canonical filenames.
const ShortHashLen = 8

// HashFile computes the SHA-256 hash of a file's content, streaming in
// fixed-size chunks so large videos are never buffered whole.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 1024*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// ShortHash returns the filename-safe hex prefix of a full content hash.
func ShortHash(hash string) string {
	if len(hash) < ShortHashLen {
		return hash
	}
	return hash[:ShortHashLen]
}

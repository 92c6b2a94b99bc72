package internal

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// Preflight verifies that a terraform run can succeed at all. Any failure
// here aborts the whole operation before a single mutation happens.
func Preflight(libraryRoot string, cfg *Config) error {
	if err := checkTools("exiftool", "ffmpeg", "ffprobe"); err != nil {
		return err
	}
	if err := checkFreeSpace(libraryRoot, cfg.MinFreeSpacePct); err != nil {
		return err
	}
	return checkWritable(libraryRoot)
}

func checkTools(tools ...string) error {
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("required tool %s not found in PATH: %w", tool, err)
		}
	}
	return nil
}

func checkFreeSpace(root string, minPct int) error {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return fmt.Errorf("failed to stat filesystem at %s: %w", root, err)
	}

	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	if total == 0 {
		return fmt.Errorf("filesystem at %s reports zero size", root)
	}

	pct := free * 100 / total
	if pct < uint64(minPct) {
		return fmt.Errorf("insufficient free space at %s: %s free of %s (%d%%, need at least %d%%)",
			root, humanize.IBytes(free), humanize.IBytes(total), pct, minPct)
	}
	return nil
}

// checkWritable performs a real write-then-delete probe instead of
// trusting permission bits.
func checkWritable(root string) error {
	probe := filepath.Join(root, ".lumen-write-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0644); err != nil {
		return fmt.Errorf("destination %s is not writable: %w", root, err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("failed to remove write probe: %w", err)
	}
	return nil
}

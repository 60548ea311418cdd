//go:build darwin || linux

package dualcam

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// checkFreeSpace verifies the filesystem holding path has at least min free
// bytes available to an unprivileged writer.
func checkFreeSpace(path string, min uint64) error {
	dir := filepath.Dir(path)

	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		// Path validity is checked elsewhere; a statfs failure here should
		// not veto the recording.
		return nil
	}

	avail := st.Bavail * uint64(st.Bsize)
	if avail < min {
		return &InsufficientResourcesError{Path: dir, Required: min, Available: avail}
	}
	return nil
}

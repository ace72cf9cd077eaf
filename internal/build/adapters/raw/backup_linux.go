//go:build linux

package raw

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// moveAside renames src to dst, refusing to replace an existing dst.
func moveAside(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST):
		return fmt.Errorf("backup %s already exists", dst)
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS):
		return checkedRename(src, dst)
	default:
		return fmt.Errorf("rename %s to %s: %w", src, dst, err)
	}
}

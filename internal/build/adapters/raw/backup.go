package raw

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// checkedRename is the fallback for filesystems without RENAME_NOREPLACE.
func checkedRename(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("backup %s already exists", dst)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}

//go:build unix

package raw

import (
	"io/fs"
	"syscall"
)

type inode struct {
	dev uint64
	ino uint64
}

func inodeOf(info fs.FileInfo) (inode, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st.Nlink < 2 {
		return inode{}, false
	}
	return inode{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
}

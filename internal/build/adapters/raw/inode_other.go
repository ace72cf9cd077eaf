//go:build !unix

package raw

import "io/fs"

type inode struct{}

func inodeOf(fs.FileInfo) (inode, bool) { return inode{}, false }

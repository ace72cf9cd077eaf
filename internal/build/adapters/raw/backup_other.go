//go:build !linux

package raw

func moveAside(src, dst string) error {
	return checkedRename(src, dst)
}

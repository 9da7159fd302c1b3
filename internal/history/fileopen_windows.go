//go:build windows

package history

import (
	stderrors "errors"
	"os"
)

var errSymlink = stderrors.New("refusing to follow symlink")

// openFileNoFollow opens a file for writing.
// On Windows, O_NOFOLLOW is not available; the final component is checked
// with Lstat instead.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errSymlink
	}
	return os.OpenFile(path, flag, perm)
}

// openFileNoFollowRead opens a file for reading.
func openFileNoFollowRead(path string) (*os.File, error) {
	return openFileNoFollow(path, os.O_RDONLY, 0)
}

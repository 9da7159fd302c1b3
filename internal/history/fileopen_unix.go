//go:build !windows

package history

import (
	stderrors "errors"
	"os"
	"syscall"
)

// errSymlink is returned when the final path component is a symlink.
var errSymlink = stderrors.New("refusing to follow symlink")

// openFileNoFollow opens a file with O_NOFOLLOW so a symlink planted in a
// project directory cannot redirect the write. O_CLOEXEC prevents FD leaks
// into git child processes.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errSymlink
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openFileNoFollowRead opens a file for reading with O_NOFOLLOW.
func openFileNoFollowRead(path string) (*os.File, error) {
	return openFileNoFollow(path, syscall.O_RDONLY, 0)
}

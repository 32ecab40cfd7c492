//go:build linux

package fsops

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DiskInfo reports raw total and free byte counts for the filesystem
// backing path, via statfs. The protocol's 2GiB clamp and 32KiB-cluster
// conversion are a wire-serialization concern, applied by the dispatcher,
// not here -- this mirrors backend/local's About(), which also reports
// raw byte counts and leaves unit conversion to its caller.
func DiskInfo(path string) (totalBytes, freeBytes uint64, err error) {
	var s unix.Statfs_t
	if err := unix.Statfs(path, &s); err != nil {
		return 0, 0, errors.Wrap(err, "failed to read disk usage")
	}
	bs := uint64(s.Bsize)
	return bs * uint64(s.Blocks), bs * uint64(s.Bavail), nil
}

// IsFAT reports whether path lives on a FAT/VFAT-formatted filesystem,
// via statfs's f_type field compared against MSDOS_SUPER_MAGIC.
func IsFAT(path string) bool {
	var s unix.Statfs_t
	if err := unix.Statfs(path, &s); err != nil {
		return false
	}
	return int64(s.Type) == unix.MSDOS_SUPER_MAGIC
}

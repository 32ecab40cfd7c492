//go:build linux

package fsops

import (
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

func uintptrPtr(v *uint32) uintptr { return uintptr(unsafe.Pointer(v)) }

// FAT_IOCTL_GET_ATTRIBUTES / FAT_IOCTL_SET_ATTRIBUTES from
// linux/msdos_fs.h: _IOR('r', 0x10, __u32) and _IOW('r', 0x11, __u32).
// x/sys/unix does not export these (they're filesystem-specific, not
// general-purpose), so they're reproduced here as the fixed ioctl
// request codes they resolve to.
const (
	fatIoctlGetAttributes = 0x80047210
	fatIoctlSetAttributes = 0x40047211
)

func getFatAttr(path string) (byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var attr uint32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), fatIoctlGetAttributes, uintptrPtr(&attr))
	runtime.KeepAlive(&attr)
	if errno != 0 {
		return 0, errno
	}
	return byte(attr), nil
}

func setFatAttr(path string, attr byte) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	val := uint32(attr)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), fatIoctlSetAttributes, uintptrPtr(&val))
	runtime.KeepAlive(&val)
	if errno != 0 {
		return errno
	}
	return nil
}

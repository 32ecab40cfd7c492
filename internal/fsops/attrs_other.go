//go:build !linux

package fsops

import "errors"

var errNoFatIoctl = errors.New("fsops: FAT attribute ioctls require linux")

func getFatAttr(path string) (byte, error) { return 0, errNoFatIoctl }

func setFatAttr(path string, attr byte) error { return errNoFatIoctl }

// Package config builds the 26-slot drive table from the CLI's
// positional path arguments and probes each for FAT-ness, the way
// ethersrv.c's main() does via realpath() + isfat() before entering the
// main loop.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/oerg866/ethersrv-866/internal/fsops"
	"github.com/sirupsen/logrus"
)

// MaxDrives is the number of positional path arguments the CLI accepts,
// mapped sequentially starting at drive C (index 2).
const MaxDrives = 24

// FirstDrive is the index of drive letter C, the first assignable slot;
// A and B are never mapped.
const FirstDrive = 2

// DriveEntry is one slot of the drive table.
type DriveEntry struct {
	Root   string // absolute host root path; empty means unmapped
	FAT    bool   // whether FAT attribute ioctls apply to this drive
	Mapped bool
}

// DriveTable is the fixed 26-slot table indexed by drive letter
// (0='A' ... 25='Z').
type DriveTable [26]DriveEntry

// Build canonicalizes each path and probes it for FAT-ness, assigning
// them to drives C, D, E, ... in order. At most MaxDrives paths are
// accepted.
func Build(paths []string, log *logrus.Logger) (DriveTable, error) {
	var table DriveTable

	if len(paths) > MaxDrives {
		return table, fmt.Errorf("config: too many drive paths: got %d, max %d", len(paths), MaxDrives)
	}

	for i, p := range paths {
		real, err := filepath.EvalSymlinks(p)
		if err != nil {
			return table, fmt.Errorf("config: resolving %q: %w", p, err)
		}
		real, err = filepath.Abs(real)
		if err != nil {
			return table, fmt.Errorf("config: absolute path for %q: %w", p, err)
		}

		fat := fsops.IsFAT(real)
		if !fat && log != nil {
			log.WithFields(logrus.Fields{"path": real}).Warn("drive is not FAT-backed; DOS attributes will be synthesized")
		}

		table[FirstDrive+i] = DriveEntry{Root: real, FAT: fat, Mapped: true}
	}

	return table, nil
}

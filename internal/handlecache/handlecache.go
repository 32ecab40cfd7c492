// Package handlecache implements the fixed 65536-slot handle table that
// maps a host pathname to the 16-bit ID the wire protocol uses to refer
// to open files and directories.
//
// Grounded in fs.c's getitemss()/sstoitem(): a linear scan over a fixed
// array that checks each slot for a match first, ages out any
// non-matching entry older than 3600 seconds as it passes it, and falls
// back to LRU replacement when the table is full.
package handlecache

import (
	"time"

	"github.com/oerg866/ethersrv-866/internal/props"
)

// NoHandle is the reserved ID meaning "no handle" / allocation failure.
// Slot 0xFFFF is never handed out so this value is unambiguous.
const NoHandle uint16 = 0xFFFF

// maxAge is how long an unused slot may sit idle before a later scan is
// allowed to reclaim it even though the table isn't full.
const maxAge = 3600 * time.Second

// slotCount is the fixed table size. NoHandle is reserved, so only
// slotCount-1 entries are ever handed out.
const slotCount = 65536

type slot struct {
	name     string
	lastUsed time.Time
	dirlist  []props.FileProps
}

func (s *slot) free() bool { return s.name == "" }

// Cache is the handle table. The zero value is not usable; use New.
type Cache struct {
	slots [slotCount]slot
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// New returns an empty handle cache.
func New() *Cache {
	return &Cache{Now: time.Now}
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Intern returns the ID for path, allocating a new slot if none already
// names it. For each slot it checks for a match before anything else,
// same as the original: a slot is only aged out past maxAge when it is
// NOT what this call is looking for, so a stale-but-matching slot gets
// its lastUsed refreshed and its ID reused rather than evicted.
func (c *Cache) Intern(path string) uint16 {
	now := c.now()
	var oldest = -1
	var oldestTime time.Time
	var freeIdx = -1

	for i := 0; i < slotCount-1; i++ {
		s := &c.slots[i]
		if !s.free() && s.name == path {
			s.lastUsed = now
			return uint16(i)
		}
		if !s.free() && now.Sub(s.lastUsed) > maxAge {
			s.name = ""
			s.dirlist = nil
		}
		if s.free() {
			if freeIdx < 0 {
				freeIdx = i
			}
			continue
		}
		if oldest < 0 || s.lastUsed.Before(oldestTime) {
			oldest = i
			oldestTime = s.lastUsed
		}
	}

	idx := freeIdx
	if idx < 0 {
		idx = oldest
	}
	if idx < 0 {
		return NoHandle
	}

	c.slots[idx] = slot{name: path, lastUsed: now}
	return uint16(idx)
}

// NameOf returns the pathname stored at id, or "" and false if the slot
// is free or id is out of range.
func (c *Cache) NameOf(id uint16) (string, bool) {
	if id >= slotCount-1 || c.slots[id].free() {
		return "", false
	}
	return c.slots[id].name, true
}

// DirListing returns the cached directory listing for id, and whether
// one is currently attached.
func (c *Cache) DirListing(id uint16) ([]props.FileProps, bool) {
	if id >= slotCount-1 || c.slots[id].free() {
		return nil, false
	}
	if c.slots[id].dirlist == nil {
		return nil, false
	}
	return c.slots[id].dirlist, true
}

// SetDirListing attaches a freshly generated listing to id, replacing
// any previous one.
func (c *Cache) SetDirListing(id uint16, list []props.FileProps) {
	if id >= slotCount-1 || c.slots[id].free() {
		return
	}
	c.slots[id].dirlist = list
}

// ClearDirListing drops any cached listing on id without freeing the
// slot itself, used when a directory is known to have been mutated.
func (c *Cache) ClearDirListing(id uint16) {
	if id >= slotCount-1 {
		return
	}
	c.slots[id].dirlist = nil
}

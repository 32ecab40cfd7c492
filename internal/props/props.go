// Package props defines the file properties record shared by the handle
// cache, the resolver's directory snapshots and the filesystem operations
// layer, so none of those packages need to import one another just to pass
// a directory entry around.
package props

// FCBName is an 11-byte DOS 8.3 short filename: 8 bytes of base name
// (space-padded) followed by 3 bytes of extension (space-padded).
type FCBName [11]byte

// FileProps mirrors struct fileprops from the original C source: the
// on-disk attributes, size, and packed DOS timestamp of one directory
// entry, plus the 8.3 name the client will see it under.
type FileProps struct {
	FCBName FCBName
	Attr    byte
	Time    uint32
	Size    uint32
	IsDir   bool
}

// DOS FAT attribute bits.
const (
	AttrReadOnly = 0x01
	AttrHidden   = 0x02
	AttrSystem   = 0x04
	AttrVolume   = 0x08
	AttrDir      = 0x10
	AttrArchive  = 0x20
	AttrDevice   = 0x40
)

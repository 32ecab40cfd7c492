// Package fsops wraps the host filesystem calls the dispatcher needs:
// stat/readdir/open/read/write/truncate/rename/unlink plus the FAT
// attribute bridge and disk usage query.
//
// Grounded in fs.c's getitemattr()/setitemattr()/gendirlist()/findfile()/
// createfile()/diskinfo()/readfile()/writefile()/delfiles()/renfile().
package fsops

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/oerg866/ethersrv-866/internal/fcb"
	"github.com/oerg866/ethersrv-866/internal/props"
)

// ErrNotDirectory is returned by Chdir when the target exists but is a
// regular file.
var ErrNotDirectory = errors.New("fsops: not a directory")

var dotFCB = fcb.ToFCB(".")
var dotDotFCB = fcb.ToFCB("..")

// attrFilterMask is the literal 0x16 admissibility mask from the
// reference implementation: an entry's HIDDEN/SYSTEM/DIR bits must all
// also be present in the caller's attribute mask. This is preserved as
// observed, not "fixed".
const attrFilterMask = 0x16

// GetAttr stats path and builds its FileProps. fatBacked controls
// whether real FAT attributes are queried for non-directories; when
// false (or when the query fails) the ARCHIVE bit is synthesized.
func GetAttr(path string, fatBacked bool) (props.FileProps, bool) {
	st, err := os.Lstat(path)
	if err != nil {
		return props.FileProps{}, false
	}

	p := props.FileProps{
		FCBName: fcb.ToFCB(filepath.Base(path)),
		Size:    uint32(st.Size()),
		Time:    fcb.TimeToDOS(st.ModTime()),
	}

	if st.IsDir() {
		p.Attr = props.AttrDir
		p.IsDir = true
		return p, true
	}

	if fatBacked {
		if attr, err := getFatAttr(path); err == nil {
			p.Attr = attr
			return p, true
		}
	}
	p.Attr = props.AttrArchive
	return p, true
}

// SetAttr applies attr to path when the drive is FAT-backed; on a
// non-FAT drive it is a silent no-op success, matching the original's
// compatibility behavior.
func SetAttr(path string, attr byte, fatBacked bool) error {
	if !fatBacked {
		return nil
	}
	return setFatAttr(path, attr)
}

// GenDirList builds a fresh, owned snapshot of dirPath's contents,
// with synthetic "." and ".." entries first, followed by the directory's
// entries sorted by filename (the order os.ReadDir returns).
func GenDirList(dirPath string, fatBacked bool) ([]props.FileProps, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	list := make([]props.FileProps, 0, len(entries)+2)
	if self, ok := GetAttr(dirPath, fatBacked); ok {
		self.FCBName = dotFCB
		list = append(list, self)
	}
	if parent, ok := GetAttr(filepath.Dir(dirPath), fatBacked); ok {
		parent.FCBName = dotDotFCB
		list = append(list, parent)
	}

	for _, e := range entries {
		p, ok := GetAttr(filepath.Join(dirPath, e.Name()), fatBacked)
		if !ok {
			continue
		}
		list = append(list, p)
	}
	return list, nil
}

func isDot(p props.FileProps) bool    { return p.FCBName == dotFCB }
func isDotDot(p props.FileProps) bool { return p.FCBName == dotDotFCB }

// FindFile walks listing starting at index startPos (0-based, i.e. the
// position after the last hit), applying the root dot-entry skip and
// the attribute admissibility rule, and returns the first match plus
// its 1-based position for the next call.
func FindFile(listing []props.FileProps, mask props.FCBName, attrMask byte, isRoot bool, startPos uint16) (props.FileProps, uint16, bool) {
	for i := int(startPos); i < len(listing); i++ {
		entry := listing[i]
		if isRoot && (isDot(entry) || isDotDot(entry)) {
			continue
		}
		if attrMask == props.AttrVolume {
			if entry.Attr&props.AttrVolume == 0 {
				continue
			}
		} else if (attrMask | (entry.Attr & attrFilterMask)) != attrMask {
			continue
		}
		if !fcb.Match(mask, entry.FCBName) {
			continue
		}
		return entry, uint16(i + 1), true
	}
	return props.FileProps{}, startPos, false
}

// ReadFile reads up to length bytes at offset. A short read at EOF is
// not an error.
func ReadFile(path string, offset int64, length int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// WriteFile writes data at offset. A zero-length data truncates or
// extends the file to exactly offset bytes and writes nothing.
func WriteFile(path string, offset int64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, os.Truncate(path, offset)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.WriteAt(data, offset)
}

// CreateFile creates or truncates dir/name, applies attr if fatBacked,
// and returns its fresh properties.
func CreateFile(dir, name string, attr byte, fatBacked bool) (props.FileProps, error) {
	full := filepath.Join(dir, name)
	f, err := os.Create(full)
	if err != nil {
		return props.FileProps{}, err
	}
	f.Close()

	if fatBacked {
		_ = setFatAttr(full, attr)
	}

	p, ok := GetAttr(full, fatBacked)
	if !ok {
		return props.FileProps{}, os.ErrNotExist
	}
	return p, nil
}

// Mkdir creates a directory.
func Mkdir(path string) error { return os.Mkdir(path, 0755) }

// Rmdir removes an empty directory.
func Rmdir(path string) error { return os.Remove(path) }

// Chdir validates that path exists and is a directory; the dispatcher
// has no actual process-wide working directory to change, it only needs
// the existence check the original performs before acknowledging CHDIR.
func Chdir(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// Rename renames oldPath to newPath, both already host-resolved (or, in
// the destination's case, the raw constructed path -- see opRename in
// the dispatch package for why RENAME does not host-resolve its
// destination).
func Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// DeleteFile unlinks a single, already-resolved file.
func DeleteFile(path string) error { return os.Remove(path) }

// DeleteMatching removes every regular file directly inside dirPath
// whose FCB encoding matches mask. Directories are never touched.
// Returns the count removed.
func DeleteMatching(dirPath string, mask props.FCBName) (int, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !fcb.Match(mask, fcb.ToFCB(e.Name())) {
			continue
		}
		if err := os.Remove(filepath.Join(dirPath, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// IsReadOnly reports whether a DOS attribute byte has the RO bit set.
func IsReadOnly(attr byte) bool { return attr&props.AttrReadOnly != 0 }

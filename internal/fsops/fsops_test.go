package fsops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oerg866/ethersrv-866/internal/fcb"
	"github.com/oerg866/ethersrv-866/internal/props"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAttrDirectory(t *testing.T) {
	dir := t.TempDir()
	p, ok := GetAttr(dir, false)
	require.True(t, ok)
	assert.Equal(t, byte(props.AttrDir), p.Attr)
	assert.True(t, p.IsDir)
}

func TestGetAttrSynthesizedArchive(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0644))

	p, ok := GetAttr(file, false)
	require.True(t, ok)
	assert.Equal(t, byte(props.AttrArchive), p.Attr)
	assert.Equal(t, uint32(5), p.Size)
}

func TestGetAttrMissing(t *testing.T) {
	_, ok := GetAttr(filepath.Join(t.TempDir(), "nope"), false)
	assert.False(t, ok)
}

func TestGenDirListIncludesDotEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))

	list, err := GenDirList(dir, false)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, fcb.ToFCB("."), list[0].FCBName)
	assert.Equal(t, fcb.ToFCB(".."), list[1].FCBName)
	assert.Equal(t, fcb.ToFCB("a.txt"), list[2].FCBName)
}

func TestFindFileSkipsDotEntriesAtRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))
	list, err := GenDirList(dir, false)
	require.NoError(t, err)

	var mask props.FCBName
	for i := range mask {
		mask[i] = '?'
	}
	entry, pos, ok := FindFile(list, mask, 0x20, true, 0)
	require.True(t, ok)
	assert.Equal(t, fcb.ToFCB("a.txt"), entry.FCBName)
	assert.Equal(t, uint16(3), pos)
}

func TestFindFileExhausted(t *testing.T) {
	dir := t.TempDir()
	list, err := GenDirList(dir, false)
	require.NoError(t, err)

	mask := fcb.ToFCB("nope.txt")
	_, _, ok := FindFile(list, mask, 0x20, true, 0)
	assert.False(t, ok)
}

func TestWriteFileZeroLengthTruncates(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(file, []byte("0123456789"), 0644))

	n, err := WriteFile(file, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	st, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Size())
}

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(file, make([]byte, 10), 0644))

	n, err := WriteFile(file, 0, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	data, err := ReadFile(file, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestReadFileShortReadAtEOF(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0644))

	data, err := ReadFile(file, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestDeleteMatchingSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.txt"), 0755))

	mask := fcb.ToFCB("????????.txt")
	n, err := DeleteMatching(dir, mask)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = os.Stat(filepath.Join(dir, "c.txt"))
	assert.NoError(t, err)
}

func TestChdirRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.ErrorIs(t, Chdir(file), ErrNotDirectory)
}

package handlecache

import (
	"testing"
	"time"

	"github.com/oerg866/ethersrv-866/internal/props"
	"github.com/stretchr/testify/assert"
)

func TestInternIsIdempotent(t *testing.T) {
	c := New()
	id1 := c.Intern("/srv/c/foo")
	id2 := c.Intern("/srv/c/foo")
	assert.Equal(t, id1, id2)
	name, ok := c.NameOf(id1)
	assert.True(t, ok)
	assert.Equal(t, "/srv/c/foo", name)
}

func TestInternDistinctPathsGetDistinctIDs(t *testing.T) {
	c := New()
	id1 := c.Intern("/srv/c/foo")
	id2 := c.Intern("/srv/c/bar")
	assert.NotEqual(t, id1, id2)
}

func TestAgedSlotIsReclaimed(t *testing.T) {
	now := time.Now()
	c := New()
	c.Now = func() time.Time { return now }
	id := c.Intern("/srv/c/stale")

	now = now.Add(2 * time.Hour)
	other := c.Intern("/srv/c/other")

	// The aged slot is freed during the scan and, being the first free
	// slot, is handed straight to the new path.
	assert.Equal(t, id, other)
	name, ok := c.NameOf(id)
	assert.True(t, ok)
	assert.Equal(t, "/srv/c/other", name, "slot older than maxAge should have been aged out by the scan")
}

func TestInternRefreshesStaleMatchInsteadOfEvicting(t *testing.T) {
	now := time.Now()
	c := New()
	c.Now = func() time.Time { return now }
	id := c.Intern("/srv/c/stale")

	list := []props.FileProps{{Attr: props.AttrDir}}
	c.SetDirListing(id, list)

	now = now.Add(2 * time.Hour)
	again := c.Intern("/srv/c/stale")

	assert.Equal(t, id, again, "re-interning a stale-but-matching path must reuse its ID")
	got, ok := c.DirListing(again)
	assert.True(t, ok, "the slot's dirlist must survive a matching re-intern")
	assert.Equal(t, list, got)
}

func TestDirListingLifecycle(t *testing.T) {
	c := New()
	id := c.Intern("/srv/c/dir")
	_, ok := c.DirListing(id)
	assert.False(t, ok)

	list := []props.FileProps{{Attr: props.AttrDir}}
	c.SetDirListing(id, list)
	got, ok := c.DirListing(id)
	assert.True(t, ok)
	assert.Equal(t, list, got)

	c.ClearDirListing(id)
	_, ok = c.DirListing(id)
	assert.False(t, ok)
}

func TestNameOfUnknownID(t *testing.T) {
	c := New()
	_, ok := c.NameOf(12345)
	assert.False(t, ok)
}

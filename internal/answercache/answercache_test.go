package answercache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndLookup(t *testing.T) {
	c := New()
	mac := [6]byte{2, 0, 0, 0, 0, 1}
	slot := c.SlotFor(mac)
	c.Store(slot, mac, []byte{1, 2, 3})

	got, ok := c.Lookup(mac)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got.Frame)
}

func TestLookupMissUnknownMAC(t *testing.T) {
	c := New()
	_, ok := c.Lookup([6]byte{9, 9, 9, 9, 9, 9})
	assert.False(t, ok)
}

func TestSlotForReusesOldestWhenFull(t *testing.T) {
	now := time.Now()
	c := New()
	c.Now = func() time.Time { return now }

	var macs [17][6]byte
	for i := 0; i < 17; i++ {
		macs[i] = [6]byte{byte(i), 0, 0, 0, 0, 1}
		now = now.Add(time.Second)
		slot := c.SlotFor(macs[i])
		c.Store(slot, macs[i], []byte{byte(i)})
	}

	// The first client's slot should have been reclaimed by the 17th.
	_, ok := c.Lookup(macs[0])
	assert.False(t, ok)
	_, ok = c.Lookup(macs[16])
	assert.True(t, ok)
}

func TestInvalidateClearsSlot(t *testing.T) {
	c := New()
	mac := [6]byte{2, 0, 0, 0, 0, 1}
	slot := c.SlotFor(mac)
	c.Store(slot, mac, []byte{1})
	c.Invalidate(slot)

	_, ok := c.Lookup(mac)
	assert.False(t, ok)
}

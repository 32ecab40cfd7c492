package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLE16RoundTrip(t *testing.T) {
	b := make([]byte, 2)
	PutLE16(b, 0xBEEF)
	assert.Equal(t, uint16(0xBEEF), LE16(b))
	assert.Equal(t, byte(0xEF), b[0])
	assert.Equal(t, byte(0xBE), b[1])
}

func TestLE32RoundTrip(t *testing.T) {
	b := make([]byte, 4)
	PutLE32(b, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), LE32(b))
}

func TestBE16(t *testing.T) {
	b := make([]byte, 2)
	PutBE16(b, EtherType)
	assert.Equal(t, byte(0xED), b[0])
	assert.Equal(t, byte(0xF5), b[1])
	assert.Equal(t, uint16(EtherType), BE16(b))
}

func TestBSDChecksumDeterministic(t *testing.T) {
	a := BSDChecksum([]byte("hello, dfs"))
	b := BSDChecksum([]byte("hello, dfs"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, BSDChecksum([]byte("hello, dfT")))
}

func TestBSDChecksumEmpty(t *testing.T) {
	assert.Equal(t, uint16(0), BSDChecksum(nil))
}

// Package frameio defines the frame I/O adapter boundary the dispatcher
// sits behind, plus the link-layer screening (destination MAC,
// ethertype, protocol version, checksum, declared-length) that the
// original performs in its main loop before ever calling process().
package frameio

import (
	"github.com/oerg866/ethersrv-866/internal/wire"
)

// Adapter delivers frames to and from the link layer. A raw-socket
// implementation backs production use; a loopback pair backs tests.
type Adapter interface {
	Recv(buf []byte) (n int, err error)
	Send(frame []byte) error
	MAC() [6]byte
}

func macEqual(a, b [6]byte) bool { return a == b }

func macOf(b []byte) [6]byte {
	var m [6]byte
	copy(m[:], b)
	return m
}

// Validate screens a raw received frame and returns the portion of it
// that the dispatcher should act on, trimmed to its declared length.
// Frames that fail any check are reported via wire.ErrMalformed and
// must simply be dropped -- never answered.
func Validate(frame []byte, ownMAC [6]byte) ([]byte, error) {
	if len(frame) < wire.HeaderLen {
		return nil, wire.ErrMalformed
	}

	dst := macOf(frame[wire.OffDestMAC : wire.OffDestMAC+6])
	if !macEqual(dst, ownMAC) && dst != wire.BroadcastMAC {
		return nil, wire.ErrMalformed
	}

	if wire.BE16(frame[wire.OffEtherType:]) != wire.EtherType {
		return nil, wire.ErrMalformed
	}

	versionByte := frame[wire.OffVersion]
	version := versionByte & 0x7F
	checksumPresent := versionByte&0x80 != 0
	if version != wire.ProtocolVersion {
		return nil, wire.ErrMalformed
	}

	n := len(frame)
	if declared := wire.LE16(frame[wire.OffLength:]); declared != 0 {
		if int(declared) < wire.HeaderLen || int(declared) > len(frame) {
			return nil, wire.ErrMalformed
		}
		n = int(declared)
	}
	frame = frame[:n]

	if checksumPresent {
		stored := wire.LE16(frame[wire.OffChecksum:])
		computed := wire.BSDChecksum(frame[56:])
		if stored != computed {
			return nil, wire.ErrMalformed
		}
	}

	return frame, nil
}

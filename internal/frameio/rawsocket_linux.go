//go:build linux

package frameio

import (
	"fmt"
	"net"

	"github.com/oerg866/ethersrv-866/internal/wire"
	"golang.org/x/sys/unix"
)

// RawSocket binds an AF_PACKET socket to a single interface and filters
// for the DFS ethertype, after ethersrv.c's raw_sock(): a SOCK_RAW
// socket whose protocol is the DFS ethertype, bound via sockaddr_ll to
// one ifindex.
type RawSocket struct {
	fd     int
	mac    [6]byte
	ifName string
	ifIdx  int
}

// OpenRawSocket opens and binds a raw socket on ifName.
func OpenRawSocket(ifName string) (*RawSocket, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("frameio: interface %q: %w", ifName, err)
	}
	var mac [6]byte
	copy(mac[:], iface.HardwareAddr)

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(wire.EtherType)))
	if err != nil {
		return nil, fmt.Errorf("frameio: socket: %w", err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(wire.EtherType),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("frameio: bind: %w", err)
	}

	return &RawSocket{fd: fd, mac: mac, ifName: ifName, ifIdx: iface.Index}, nil
}

func (r *RawSocket) MAC() [6]byte { return r.mac }

func (r *RawSocket) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(r.fd, buf, 0)
	if err != nil {
		return 0, fmt.Errorf("frameio: recvfrom: %w", err)
	}
	return n, nil
}

func (r *RawSocket) Send(frame []byte) error {
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(wire.EtherType),
		Ifindex:  r.ifIdx,
	}
	if err := unix.Sendto(r.fd, frame, 0, addr); err != nil {
		return fmt.Errorf("frameio: sendto: %w", err)
	}
	return nil
}

// Close releases the underlying socket.
func (r *RawSocket) Close() error { return unix.Close(r.fd) }

// htons converts a host-order uint16 into the network-order value the
// AF_PACKET protocol argument expects.
func htons(v uint16) uint16 {
	return v<<8&0xFF00 | v>>8
}

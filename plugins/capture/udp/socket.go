package udp

import (
	"net"
	"net/netip"
	"time"
)

// Socket is the subset of *net.UDPConn the capturer uses.
// The abstraction lets tests drive the capturer without real network
// connections.
type Socket interface {
	ReadFromUDPAddrPort(b []byte) (n int, addr netip.AddrPort, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// SocketFactory creates sockets.
type SocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (Socket, error)
}

// RealSocketFactory implements SocketFactory using net.ListenUDP.
type RealSocketFactory struct{}

// ListenUDP creates a new UDP socket.
func (RealSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (Socket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

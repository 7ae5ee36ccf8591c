// Package netio opens the multicast UDP socket the carousel is broadcast
// on, supporting both IPv4 and IPv6 groups and SO_REUSEPORT so multiple
// receiver instances can share one group on the same host.
package netio

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// DefaultGroupV4 and DefaultGroupV6 are the carousel's documented
// multicast rendezvous points.
const (
	DefaultGroupV4 = "239.1.2.3:8280"
	DefaultGroupV6 = "[ff0e::8280]:8280"
)

// MulticastListener reads raw datagrams from a joined multicast group.
type MulticastListener struct {
	conn *net.UDPConn
}

// Listen joins the multicast group at addr (host:port) on iface (nil for
// the default interface chosen by the OS) and returns a listener ready to
// read datagrams. SO_REUSEPORT is set on the underlying socket so multiple
// processes can bind the same group concurrently.
func Listen(addr string, iface *net.Interface) (*MulticastListener, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("netio: parsing address %q: %w", addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("netio: %q is not an IP multicast address", host)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	listenAddr := addr
	if ip.To4() == nil {
		// bind the wildcard address; the group is joined explicitly below.
		_, port, _ := net.SplitHostPort(addr)
		listenAddr = net.JoinHostPort("::", port)
	} else {
		_, port, _ := net.SplitHostPort(addr)
		listenAddr = net.JoinHostPort("0.0.0.0", port)
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("netio: listen %q: %w", listenAddr, err)
	}
	conn := pc.(*net.UDPConn)

	group := &net.UDPAddr{IP: ip}
	if ip.To4() != nil {
		p := ipv4.NewPacketConn(conn)
		if err := p.JoinGroup(iface, group); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("netio: join ipv4 group %s: %w", ip, err)
		}
	} else {
		p := ipv6.NewPacketConn(conn)
		if err := p.JoinGroup(iface, group); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("netio: join ipv6 group %s: %w", ip, err)
		}
	}

	return &MulticastListener{conn: conn}, nil
}

// ReadFrom reads one datagram into buf, returning the number of bytes read.
func (l *MulticastListener) ReadFrom(buf []byte) (int, net.Addr, error) {
	return l.conn.ReadFrom(buf)
}

// Close releases the underlying socket.
func (l *MulticastListener) Close() error {
	return l.conn.Close()
}

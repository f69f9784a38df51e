// Package tcp is the default daemon-to-daemon transport.Stream binding,
// adapted from the teacher repo's internal/netx tcpNetwork.
package tcp

import (
	"net"

	"kipa/internal/transport"
)

// Stream is a transport.Stream over plain TCP.
type Stream struct{}

// New returns a ready-to-use tcp.Stream.
func New() Stream { return Stream{} }

func (Stream) Dial(addr transport.Addr) (transport.Conn, error) {
	c, err := net.Dial("tcp", string(addr))
	if err != nil {
		return nil, err
	}
	return conn{c}, nil
}

func (Stream) Listen(addr transport.Addr) (transport.Listener, error) {
	l, err := net.Listen("tcp", string(addr))
	if err != nil {
		return nil, err
	}
	return listener{l}, nil
}

type conn struct{ net.Conn }

func (c conn) RemoteAddr() net.Addr { return c.Conn.RemoteAddr() }

type listener struct{ net.Listener }

func (l listener) Accept() (transport.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return conn{c}, nil
}

func (l listener) Addr() transport.Addr {
	return transport.Addr(l.Listener.Addr().String())
}

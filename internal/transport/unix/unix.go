// Package unix is the local IPC transport.Stream binding used by the CLI to
// talk to a running daemon. No envelope crypto applies to this transport.
package unix

import (
	"net"
	"os"

	"kipa/internal/transport"
)

// Stream is a transport.Stream over a Unix domain socket.
type Stream struct{}

// New returns a ready-to-use unix.Stream.
func New() Stream { return Stream{} }

func (Stream) Dial(addr transport.Addr) (transport.Conn, error) {
	c, err := net.Dial("unix", string(addr))
	if err != nil {
		return nil, err
	}
	return conn{c}, nil
}

func (Stream) Listen(addr transport.Addr) (transport.Listener, error) {
	// A stale socket file from an unclean shutdown must not block startup.
	_ = os.Remove(string(addr))
	l, err := net.Listen("unix", string(addr))
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

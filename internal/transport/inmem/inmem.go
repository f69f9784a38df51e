// Package inmem is an in-process transport.Stream binding used to wire
// multiple daemons together inside a single test binary, without opening
// real sockets. It is the vehicle for the pipeline package's end-to-end
// tests (one-hop search, connect, fast-mode exchange) across several
// cooperating daemons.
package inmem

import (
	"fmt"
	"io"
	"net"
	"sync"

	"kipa/internal/transport"
)

// Network is a shared in-memory switch. Every Stream created From the same
// Network can dial every other Stream's listener by address.
type Network struct {
	mu        sync.Mutex
	listeners map[transport.Addr]*Listener
}

// NewNetwork creates an empty in-memory switch.
func NewNetwork() *Network {
	return &Network{listeners: make(map[transport.Addr]*Listener)}
}

// Stream binds one participant to a shared Network.
type Stream struct {
	net  *Network
	self transport.Addr
}

// NewStream returns a transport.Stream bound to net, identifying itself (for
// RemoteAddr purposes when it dials out) as self.
func NewStream(n *Network, self transport.Addr) *Stream {
	return &Stream{net: n, self: self}
}

func (s *Stream) Dial(addr transport.Addr) (transport.Conn, error) {
	s.net.mu.Lock()
	l, ok := s.net.listeners[addr]
	s.net.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("inmem: no listener at %q", addr)
	}

	clientSide, serverSide := net.Pipe()
	select {
	case l.pending <- &conn{Conn: serverSide, remote: s.self}:
	default:
		return nil, fmt.Errorf("inmem: listener at %q is backlogged", addr)
	}
	return &conn{Conn: clientSide, remote: addr}, nil
}

func (s *Stream) Listen(addr transport.Addr) (transport.Listener, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if _, exists := s.net.listeners[addr]; exists {
		return nil, fmt.Errorf("inmem: address %q already in use", addr)
	}
	l := &Listener{net: s.net, addr: addr, pending: make(chan *conn, 64)}
	s.net.listeners[addr] = l
	return l, nil
}

// Listener is an in-memory transport.Listener.
type Listener struct {
	net     *Network
	addr    transport.Addr
	pending chan *conn
	closeMu sync.Mutex
	closed  bool
}

func (l *Listener) Accept() (transport.Conn, error) {
	c, ok := <-l.pending
	if !ok {
		return nil, io.EOF
	}
	return c, nil
}

func (l *Listener) Addr() transport.Addr { return l.addr }

func (l *Listener) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	l.net.mu.Lock()
	delete(l.net.listeners, l.addr)
	l.net.mu.Unlock()

	close(l.pending)
	return nil
}

type conn struct {
	net.Conn
	remote transport.Addr
}

func (c *conn) RemoteAddr() net.Addr { return pipeAddr(c.remote) }

type pipeAddr transport.Addr

func (a pipeAddr) Network() string { return "inmem" }
func (a pipeAddr) String() string  { return string(a) }

// Package transport defines the byte-stream request/response contract the
// core depends on: one connection carries exactly one request and its
// response. Concrete bindings (tcp, unix, inmem) live in subpackages; the
// envelope and pipeline packages depend only on this interface.
package transport

import (
	"io"
	"net"
)

// Addr is a dialable/listenable endpoint string, e.g. "host:port" for TCP or
// a filesystem path for a Unix domain socket.
type Addr string

// Conn is one request/response connection. RemoteAddr reports the address
// the connection was observed from, which the incoming pipeline uses as the
// trusted peer IP (see wire.Address and internal/pipeline).
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

// Stream is a byte-stream transport: dial out to a peer, or listen for
// inbound connections. Implementations MUST NOT assume pooling; callers
// open one connection per request.
type Stream interface {
	Dial(addr Addr) (Conn, error)
	Listen(addr Addr) (Listener, error)
}

// Listener accepts inbound connections one at a time.
type Listener interface {
	Accept() (Conn, error)
	Addr() Addr
	Close() error
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"kipa/internal/envelope"
	"kipa/internal/handler"
	"kipa/internal/logging"
	"kipa/internal/neighbourstore"
	"kipa/internal/transport"
	"kipa/internal/wire"
)

// VerifyTimeout bounds the background Verify probe the incoming pipeline
// schedules against a newly admitted sender.
const VerifyTimeout = 5 * time.Second

// Incoming answers one inbound request at a time over an accepted
// connection, applying steps (a) through (e) of the incoming pipeline plus
// the tentative-admission side effect.
type Incoming struct {
	envelope   *envelope.Envelope
	handler    *handler.Handler
	neighbours *neighbourstore.Store
	outgoing   *Outgoing // nil disables the Verify-probe side effect
	log        *logging.Logger
}

// NewIncoming builds an Incoming pipeline. outgoing may be nil (e.g. for
// the CLI's local-IPC listener, which never needs to admit neighbours). A
// nil log is replaced with a no-op logger.
func NewIncoming(env *envelope.Envelope, h *handler.Handler, neighbours *neighbourstore.Store, outgoing *Outgoing, log *logging.Logger) *Incoming {
	if log == nil {
		log = logging.Nop()
	}
	return &Incoming{envelope: env, handler: h, neighbours: neighbours, outgoing: outgoing, log: log}
}

// HandleConn reads one request frame from conn, dispatches it, and writes
// back one response frame. The caller owns conn's lifecycle.
func (in *Incoming) HandleConn(ctx context.Context, conn transport.Conn) error {
	reqBytes, err := transport.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("pipeline: read request: %w", err)
	}

	var req wire.Request
	if err := json.Unmarshal(reqBytes, &req); err != nil {
		in.log.Warnw("request decode failed", "err", err)
		return fmt.Errorf("%w: %v", envelope.ErrDecode, err)
	}

	body, err := in.envelope.OpenRequest(req)
	if err != nil {
		in.log.Warnw("request envelope rejected", "kind", req.Envelope.Mode, "err", err)
		return err
	}

	sender := wire.Node{Key: req.Sender.Key, Addr: wire.Address{IP: inferPeerIP(conn), Port: req.Sender.Port}}

	respBody := in.handler.Handle(ctx, body)

	resp, err := in.envelope.SealResponse(req.Envelope.Mode, sender.Key, respBody)
	if err != nil {
		return fmt.Errorf("pipeline: seal response: %w", err)
	}

	respBytes, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("pipeline: encode response frame: %w", err)
	}
	if err := transport.WriteFrame(conn, respBytes); err != nil {
		return fmt.Errorf("pipeline: write response: %w", err)
	}

	in.admit(sender)
	return nil
}

// inferPeerIP takes the IP half of conn's remote address, never anything
// the request payload itself claims: a peer's own IP is only ever trusted
// from the connection it arrives on. Transports whose addresses aren't
// host:port shaped (such as Unix domain sockets) fall back to loopback,
// which is an adequate stand-in since such transports aren't routed by IP.
func inferPeerIP(conn transport.Conn) net.IP {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return net.ParseIP("127.0.0.1")
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return net.ParseIP("127.0.0.1")
	}
	return ip
}

// admit offers sender to the neighbour store and, if accepted, schedules a
// background Verify probe to confirm liveness and key-address binding
// before the entry is trusted beyond tentative routing use.
func (in *Incoming) admit(sender wire.Node) {
	if in.outgoing == nil {
		return
	}
	if !in.neighbours.Consider(sender) {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), VerifyTimeout)
		defer cancel()

		body := wire.RequestBody{Version: "1", Kind: wire.KindVerify}
		_, err := in.outgoing.Send(ctx, transport.Addr(sender.Addr.String()), sender.Key, body)
		if err == nil {
			in.neighbours.MarkVerified(sender.Key)
			in.log.Debugw("neighbour verified", "peer", sender.Key.Fingerprint)
		} else {
			in.log.Debugw("neighbour verify probe failed", "peer", sender.Key.Fingerprint, "err", err)
		}
	}()
}

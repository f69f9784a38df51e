// Package pipeline implements the outgoing and incoming message pipelines
// that tie the secure envelope, wire codec, and transport together,
// adapted from the teacher repo's internal/dht rpc.go request/response
// correlation pattern down to a per-connection request/reply exchange.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"kipa/internal/envelope"
	"kipa/internal/logging"
	"kipa/internal/transport"
	"kipa/internal/wire"
)

// Outgoing sends requests to other daemons and validates their replies.
type Outgoing struct {
	localKey  wire.Key
	localPort uint16
	stream    transport.Stream
	envelope  *envelope.Envelope
	mode      wire.Mode
	log       *logging.Logger
}

// NewOutgoing builds an Outgoing pipeline bound to one local identity,
// dialing through stream and applying the envelope in mode for every
// request it sends. A nil log is replaced with a no-op logger.
func NewOutgoing(localKey wire.Key, localPort uint16, stream transport.Stream, env *envelope.Envelope, mode wire.Mode, log *logging.Logger) *Outgoing {
	if log == nil {
		log = logging.Nop()
	}
	return &Outgoing{localKey: localKey, localPort: localPort, stream: stream, envelope: env, mode: mode, log: log}
}

// Send performs steps (a) through (h) of the outgoing pipeline: it stamps
// a fresh message id and the local port onto body, seals it, dials addr,
// exchanges one framed request/response pair, and validates the reply
// before returning its body.
func (o *Outgoing) Send(ctx context.Context, addr transport.Addr, recipient wire.Key, body wire.RequestBody) (wire.ResponseBody, error) {
	body.MessageID = freshMessageID()

	sender := wire.SenderNode{Key: o.localKey, Port: o.localPort}
	req, err := o.envelope.SealRequest(o.mode, sender, recipient, body)
	if err != nil {
		return wire.ResponseBody{}, fmt.Errorf("pipeline: seal request: %w", err)
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return wire.ResponseBody{}, fmt.Errorf("pipeline: encode request frame: %w", err)
	}

	type result struct {
		respBytes []byte
		err       error
	}
	done := make(chan result, 1)

	go func() {
		conn, err := o.stream.Dial(addr)
		if err != nil {
			o.log.Debugw("dial failed", "addr", addr, "err", err)
			done <- result{err: fmt.Errorf("pipeline: dial: %w", err)}
			return
		}
		defer conn.Close()

		if err := transport.WriteFrame(conn, reqBytes); err != nil {
			done <- result{err: fmt.Errorf("pipeline: write request: %w", err)}
			return
		}
		respBytes, err := transport.ReadFrame(conn)
		if err != nil {
			done <- result{err: fmt.Errorf("pipeline: read response: %w", err)}
			return
		}
		done <- result{respBytes: respBytes}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return wire.ResponseBody{}, r.err
		}
		var resp wire.Response
		if err := json.Unmarshal(r.respBytes, &resp); err != nil {
			return wire.ResponseBody{}, fmt.Errorf("%w: %v", envelope.ErrDecode, err)
		}
		return o.envelope.OpenResponse(resp, body.MessageID, recipient)
	case <-ctx.Done():
		return wire.ResponseBody{}, ctx.Err()
	}
}

// freshMessageID draws a random 32-bit message id from a cryptographic
// source, per the outgoing pipeline's "fresh random 32-bit message id"
// step; a predictable id would let an observer correlate requests across
// an otherwise-unlinkable set of fast-mode messages.
func freshMessageID() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("pipeline: system randomness unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint32(b[:])
}

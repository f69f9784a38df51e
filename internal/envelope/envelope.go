// Package envelope implements the secure envelope: sign/encrypt/verify/decrypt
// and message-id checking layered over transport+codec, in both wire modes
// (fast: plaintext request, signed response; private: signed and encrypted
// both ways). It depends only on the narrow cryptoprovider.Provider and
// wirecodec.Codec interfaces, never on a concrete backend.
package envelope

import (
	"fmt"

	"kipa/internal/cryptoprovider"
	"kipa/internal/wire"
	"kipa/internal/wirecodec"
)

// Envelope seals outgoing messages and opens incoming ones for one local
// identity.
type Envelope struct {
	provider cryptoprovider.Provider
	codec    wirecodec.Codec
}

// New builds an Envelope over the given crypto provider and codec.
func New(provider cryptoprovider.Provider, codec wirecodec.Codec) *Envelope {
	return &Envelope{provider: provider, codec: codec}
}

func (e *Envelope) localFingerprint() string {
	return e.provider.Fingerprint(e.provider.LocalPublicKey())
}

// SealRequest encodes and envelopes body for sending to recipient in the
// given mode. sender is the caller's own (key, port) to attach as the
// request's SenderNode; the IP is deliberately absent here since a peer's
// own IP is never trusted from payload, only from the connection it arrives
// on.
func (e *Envelope) SealRequest(mode wire.Mode, sender wire.SenderNode, recipient wire.Key, body wire.RequestBody) (wire.Request, error) {
	plaintext, err := e.codec.EncodeRequest(body)
	if err != nil {
		return wire.Request{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var env wire.Envelope
	switch mode {
	case wire.ModePrivate:
		sig, err := e.provider.Sign(plaintext)
		if err != nil {
			return wire.Request{}, fmt.Errorf("envelope: sign request: %w", err)
		}
		ciphertext, err := e.provider.Encrypt(cryptoprovider.PublicKey{Raw: recipient.Raw}, plaintext)
		if err != nil {
			return wire.Request{}, fmt.Errorf("%w: %v", ErrDecryption, err)
		}
		env = wire.Envelope{
			Mode:            wire.ModePrivate,
			SenderPublicKey: e.provider.LocalPublicKey().Raw,
			Signature:       sig,
			Body:            ciphertext,
		}
	case wire.ModeFast:
		// Fast-mode requests are never signed: the mode trades request
		// authenticity for a single signing operation per reply.
		env = wire.Envelope{
			Mode:              wire.ModeFast,
			SenderFingerprint: e.localFingerprint(),
			Body:              plaintext,
		}
	default:
		return wire.Request{}, ErrUnsupportedMode
	}

	return wire.Request{Sender: sender, Envelope: env}, nil
}

// OpenRequest inverts SealRequest and returns the decoded body. The declared
// sender identity in the request's SenderNode is cross-checked against
// whatever the envelope itself asserts (full public key in private mode,
// bare fingerprint in fast mode). It is the caller's job to combine
// req.Sender with the IP observed on the connection to build the full
// sender Node.
func (e *Envelope) OpenRequest(req wire.Request) (wire.RequestBody, error) {
	switch req.Envelope.Mode {
	case wire.ModePrivate:
		pub := cryptoprovider.PublicKey{Raw: req.Envelope.SenderPublicKey}
		if e.provider.Fingerprint(pub) != req.Sender.Key.Fingerprint {
			return wire.RequestBody{}, ErrSenderMismatch
		}
		plaintext, err := e.provider.Decrypt(pub, req.Envelope.Body)
		if err != nil {
			return wire.RequestBody{}, fmt.Errorf("%w: %v", ErrDecryption, err)
		}
		if !e.provider.Verify(pub, plaintext, req.Envelope.Signature) {
			return wire.RequestBody{}, ErrSignature
		}
		body, err := e.codec.DecodeRequest(plaintext)
		if err != nil {
			return wire.RequestBody{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return body, nil

	case wire.ModeFast:
		if req.Envelope.SenderFingerprint != req.Sender.Key.Fingerprint {
			return wire.RequestBody{}, ErrSenderMismatch
		}
		body, err := e.codec.DecodeRequest(req.Envelope.Body)
		if err != nil {
			return wire.RequestBody{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return body, nil

	default:
		return wire.RequestBody{}, ErrUnsupportedMode
	}
}

// SealResponse encodes and envelopes body as a reply addressed to requester.
// Fast-mode responses are always signed; private-mode responses are always
// signed and encrypted, mirroring SealRequest.
func (e *Envelope) SealResponse(mode wire.Mode, requester wire.Key, body wire.ResponseBody) (wire.Response, error) {
	plaintext, err := e.codec.EncodeResponse(body)
	if err != nil {
		return wire.Response{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var env wire.Envelope
	switch mode {
	case wire.ModePrivate:
		sig, err := e.provider.Sign(plaintext)
		if err != nil {
			return wire.Response{}, fmt.Errorf("envelope: sign response: %w", err)
		}
		ciphertext, err := e.provider.Encrypt(cryptoprovider.PublicKey{Raw: requester.Raw}, plaintext)
		if err != nil {
			return wire.Response{}, fmt.Errorf("%w: %v", ErrDecryption, err)
		}
		env = wire.Envelope{
			Mode:            wire.ModePrivate,
			SenderPublicKey: e.provider.LocalPublicKey().Raw,
			Signature:       sig,
			Body:            ciphertext,
		}
	case wire.ModeFast:
		sig, err := e.provider.Sign(plaintext)
		if err != nil {
			return wire.Response{}, fmt.Errorf("envelope: sign response: %w", err)
		}
		env = wire.Envelope{
			Mode:              wire.ModeFast,
			SenderFingerprint: e.localFingerprint(),
			Signature:         sig,
			Body:              plaintext,
		}
	default:
		return wire.Response{}, ErrUnsupportedMode
	}

	return wire.Response{Envelope: env}, nil
}

// OpenResponse inverts SealResponse and enforces the two response
// invariants: the echoed message id must match what was sent, and the
// responder's key must match the key that was addressed.
// expectedResponder is the full key of the node the request was sent to,
// known to the caller independent of anything the response itself claims.
func (e *Envelope) OpenResponse(resp wire.Response, expectedMessageID uint32, expectedResponder wire.Key) (wire.ResponseBody, error) {
	var body wire.ResponseBody

	switch resp.Envelope.Mode {
	case wire.ModePrivate:
		pub := cryptoprovider.PublicKey{Raw: resp.Envelope.SenderPublicKey}
		if e.provider.Fingerprint(pub) != expectedResponder.Fingerprint {
			return wire.ResponseBody{}, ErrSenderMismatch
		}
		plaintext, err := e.provider.Decrypt(pub, resp.Envelope.Body)
		if err != nil {
			return wire.ResponseBody{}, fmt.Errorf("%w: %v", ErrDecryption, err)
		}
		if !e.provider.Verify(pub, plaintext, resp.Envelope.Signature) {
			return wire.ResponseBody{}, ErrSignature
		}
		body, err = e.codec.DecodeResponse(plaintext)
		if err != nil {
			return wire.ResponseBody{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}

	case wire.ModeFast:
		if resp.Envelope.SenderFingerprint != expectedResponder.Fingerprint {
			return wire.ResponseBody{}, ErrSenderMismatch
		}
		pub := cryptoprovider.PublicKey{Raw: expectedResponder.Raw}
		if !e.provider.Verify(pub, resp.Envelope.Body, resp.Envelope.Signature) {
			return wire.ResponseBody{}, ErrSignature
		}
		var err error
		body, err = e.codec.DecodeResponse(resp.Envelope.Body)
		if err != nil {
			return wire.ResponseBody{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}

	default:
		return wire.ResponseBody{}, ErrUnsupportedMode
	}

	if body.MessageID != expectedMessageID {
		return wire.ResponseBody{}, ErrMessageIDMismatch
	}
	return body, nil
}

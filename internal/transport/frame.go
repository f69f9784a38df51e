package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame to guard against a malicious or
// confused peer claiming an enormous length prefix.
const MaxFrameSize = 16 * 1024 * 1024

// WriteFrame writes p as a single length-prefixed frame.
func WriteFrame(w io.Writer, p []byte) error {
	if len(p) > MaxFrameSize {
		return fmt.Errorf("transport: frame too large (%d bytes)", len(p))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	_, err := w.Write(p)
	return err
}

// ReadFrame reads one length-prefixed frame written by WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("transport: frame too large (%d bytes)", n)
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

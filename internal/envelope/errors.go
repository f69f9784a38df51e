package envelope

import "errors"

// Failure kinds the secure envelope can report.
var (
	ErrDecode            = errors.New("envelope: decode error")
	ErrSignature         = errors.New("envelope: signature mismatch")
	ErrDecryption        = errors.New("envelope: decryption failure")
	ErrSenderMismatch    = errors.New("envelope: sender key mismatch")
	ErrMessageIDMismatch = errors.New("envelope: message id mismatch")
	ErrUnsupportedMode   = errors.New("envelope: unsupported wire mode")
)

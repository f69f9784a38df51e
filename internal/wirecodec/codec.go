// Package wirecodec defines the bijective mapping between in-memory message
// values and byte strings. The core depends only on the Codec interface;
// internal/wirecodec/jsoncodec is the default concrete binding.
package wirecodec

import "kipa/internal/wire"

// Codec encodes and decodes the two wire-level message bodies. Implementations
// must be bijective (encode then decode yields an equal value) and must
// reject unknown required fields rather than silently ignoring them.
type Codec interface {
	EncodeRequest(body wire.RequestBody) ([]byte, error)
	DecodeRequest(data []byte) (wire.RequestBody, error)

	EncodeResponse(body wire.ResponseBody) ([]byte, error)
	DecodeResponse(data []byte) (wire.ResponseBody, error)
}

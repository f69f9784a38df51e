// Package jsoncodec is the default wirecodec.Codec binding, built on
// encoding/json the way the teacher repo encodes every envelope and DHT
// payload.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"kipa/internal/wire"
)

// Codec is a wirecodec.Codec backed by encoding/json. Unknown fields are
// rejected so a decode is never silently lossy.
type Codec struct{}

// New returns a ready-to-use Codec.
func New() Codec { return Codec{} }

func (Codec) EncodeRequest(body wire.RequestBody) ([]byte, error) {
	return json.Marshal(body)
}

func (Codec) DecodeRequest(data []byte) (wire.RequestBody, error) {
	var body wire.RequestBody
	if err := decodeStrict(data, &body); err != nil {
		return wire.RequestBody{}, fmt.Errorf("jsoncodec: decode request: %w", err)
	}
	return body, nil
}

func (Codec) EncodeResponse(body wire.ResponseBody) ([]byte, error) {
	return json.Marshal(body)
}

func (Codec) DecodeResponse(data []byte) (wire.ResponseBody, error) {
	var body wire.ResponseBody
	if err := decodeStrict(data, &body); err != nil {
		return wire.ResponseBody{}, fmt.Errorf("jsoncodec: decode response: %w", err)
	}
	return body, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after message")
	}
	return nil
}

// Package codec turns cache values into bytes and back.
//
// JSON, Msgpack and CBOR handle any V; String and Bytes are identities for
// text and raw payloads; Protobuf handles generated messages. Limit guards
// Decode against oversized payloads. ByName picks a codec from a configured
// serializer name.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

var ErrUnknown = errors.New("codec: unknown serializer")

// ByName returns the codec registered under name: "json" (default for ""),
// "msgpack", "cbor" or "string". For cbor a version >= 2 selects
// deterministic encoding. "string" requires V to be string.
func ByName[V any](name string, version int) (Codec[V], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON[V]{}, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	case "cbor":
		c, err := NewCBOR[V](version >= 2)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "string":
		var c any = String{}
		if sc, ok := c.(Codec[V]); ok {
			return sc, nil
		}
		var zero V
		return nil, fmt.Errorf("%w: string serializer needs a string value type, got %T", ErrUnknown, zero)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
}

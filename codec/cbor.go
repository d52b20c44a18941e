package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes with fxamacker/cbor. Build it with NewCBOR; the zero value
// has no modes and panics.
//
// serializer_version >= 2 selects Core Deterministic encoding (RFC 8949
// section 4.2), so equal values always produce equal bytes across processes.
// Lower versions use preferred unsorted encoding. Timestamps are written as
// RFC3339Nano strings in both cases.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	// the default DecOptions cap nesting and sizes; cache payloads are ours
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR panics if the modes cannot be built. For package-level vars and tests.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if err := c.dec.Unmarshal(b, &v); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack encodes with vmihailenco/msgpack. It honours `msgpack:"..."` struct
// tags and falls back to field names, not `json` tags.
type Msgpack[V any] struct{}

var _ Codec[struct{}] = Msgpack[struct{}]{}

func (Msgpack[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	if err := msgpack.Unmarshal(b, &v); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

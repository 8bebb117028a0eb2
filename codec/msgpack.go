package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes values using vmihailenco/msgpack/v5 and marks
// payloads with FlagMsgpack. The zero value is ready to use.
//
// Msgpack is compact and fast; be mindful of struct tag differences vs
// JSON. Use `msgpack:"fieldName"` tags if you need explicit control.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) (Blob, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Flags: FlagMsgpack, Data: b}, nil
}

func (Msgpack[V]) Decode(b Blob) (V, error) {
	var v V
	err := msgpack.Unmarshal(b.Data, &v)
	return v, err
}

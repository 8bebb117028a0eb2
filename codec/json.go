package codec

import "encoding/json"

// JSON serializes values with encoding/json and marks payloads with
// FlagJSON. The zero value is ready to use.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) (Blob, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Flags: FlagJSON, Data: b}, nil
}

func (JSON[V]) Decode(b Blob) (V, error) {
	var v V
	err := json.Unmarshal(b.Data, &v)
	return v, err
}

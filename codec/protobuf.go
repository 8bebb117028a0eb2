package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes proto messages and marks payloads with
// FlagProtobuf.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *mypb.User { return &mypb.User{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) (Blob, error) {
	b, err := proto.Marshal(v)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Flags: FlagProtobuf, Data: b}, nil
}

func (c Protobuf[T]) Decode(b Blob) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b.Data, m)
	return m, err
}

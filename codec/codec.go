// Package codec converts application values to and from the flagged byte
// payload cache servers store. The flags word travels with the payload
// and round-trips through the server untouched; codecs use it to mark
// their encoding.
package codec

// Blob is the codec's unit of exchange: an opaque payload plus the
// server-side flags word stored alongside it.
type Blob struct {
	Flags uint32
	Data  []byte
}

// Flag values marking the encoding of a stored payload.
const (
	FlagRaw      uint32 = 0
	FlagJSON     uint32 = 1
	FlagMsgpack  uint32 = 2
	FlagCBOR     uint32 = 3
	FlagProtobuf uint32 = 4
)

// Codec encodes/decodes values V to flagged payloads for storage.
type Codec[V any] interface {
	Encode(V) (Blob, error)
	Decode(Blob) (V, error)
}

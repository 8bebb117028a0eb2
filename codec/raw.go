package codec

// Bytes is an identity codec for []byte values: the payload is stored
// unchanged with FlagRaw. Useful when the application already holds
// serialized bytes and only needs routing and dispatch.
type Bytes struct{}

func (Bytes) Encode(b []byte) (Blob, error) { return Blob{Flags: FlagRaw, Data: b}, nil }
func (Bytes) Decode(b Blob) ([]byte, error) { return b.Data, nil }

// String is a trivial codec for Go string values. By convention this
// assumes UTF-8 and performs no validation.
type String struct{}

func (String) Encode(s string) (Blob, error) { return Blob{Flags: FlagRaw, Data: []byte(s)}, nil }
func (String) Decode(b Blob) (string, error) { return string(b.Data), nil }

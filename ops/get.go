package ops

// Get retrieves one or more keys from a single connection. OnValue fires
// once per key found (absent keys produce no call); OnComplete fires
// exactly once after the last value, including when nothing was found.
type Get struct {
	Base
	Keys       []string
	OnValue    func(key string, flags uint32, data []byte)
	OnComplete func()
}

func NewGet(keys []string, onValue func(key string, flags uint32, data []byte), onComplete func()) *Get {
	return &Get{Keys: keys, OnValue: onValue, OnComplete: onComplete}
}

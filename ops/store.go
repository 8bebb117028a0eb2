package ops

// StoreMode selects the server-side precondition for a store.
type StoreMode int

const (
	// StoreAdd stores only if the key does not exist.
	StoreAdd StoreMode = iota
	// StoreSet stores unconditionally.
	StoreSet
	// StoreReplace stores only if the key already exists.
	StoreReplace
)

func (m StoreMode) String() string {
	switch m {
	case StoreAdd:
		return "add"
	case StoreSet:
		return "set"
	case StoreReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Store writes a flagged payload under Key. OnResult receives the
// server's status token (StatusStored, StatusNotStored, ...).
type Store struct {
	Base
	Mode       StoreMode
	Key        string
	Flags      uint32
	Expiration int32 // seconds; 0 = never
	Data       []byte
	OnResult   func(status string)
}

func NewStore(mode StoreMode, key string, flags uint32, exp int32, data []byte, onResult func(status string)) *Store {
	return &Store{
		Mode:       mode,
		Key:        key,
		Flags:      flags,
		Expiration: exp,
		Data:       data,
		OnResult:   onResult,
	}
}

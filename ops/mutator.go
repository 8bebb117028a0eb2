package ops

// MutatorOp selects the direction of a counter adjustment.
type MutatorOp int

const (
	Incr MutatorOp = iota
	Decr
)

func (m MutatorOp) String() string {
	if m == Decr {
		return "decr"
	}
	return "incr"
}

// Mutator adjusts a server-side decimal counter by By. OnResult receives
// the new value; ok is false when the key does not exist on the server.
type Mutator struct {
	Base
	Op       MutatorOp
	Key      string
	By       int64
	OnResult func(value int64, ok bool)
}

func NewMutator(op MutatorOp, key string, by int64, onResult func(value int64, ok bool)) *Mutator {
	return &Mutator{Op: op, Key: key, By: by, OnResult: onResult}
}

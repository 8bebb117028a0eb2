package ops

// Delete removes Key after When seconds (0 = immediately). Fire and
// forget: there is no completion callback.
type Delete struct {
	Base
	Key  string
	When int32
}

func NewDelete(key string, when int32) *Delete {
	return &Delete{Key: key, When: when}
}

// Flush drops every item on one connection's server after Delay seconds.
// Fire and forget.
type Flush struct {
	Base
	Delay int32
}

func NewFlush(delay int32) *Flush {
	return &Flush{Delay: delay}
}

// Version asks one server for its version string.
type Version struct {
	Base
	OnResult func(version string)
}

func NewVersion(onResult func(version string)) *Version {
	return &Version{OnResult: onResult}
}

// Stats streams one server's statistics. OnStat fires once per
// name/value pair; OnComplete fires exactly once after the stream ends.
type Stats struct {
	Base
	OnStat     func(name, value string)
	OnComplete func()
}

func NewStats(onStat func(name, value string), onComplete func()) *Stats {
	return &Stats{OnStat: onStat, OnComplete: onComplete}
}

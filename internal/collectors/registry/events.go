package registry

import "time"

// UnknownTotal marks progress events where the total is not known upfront.
const UnknownTotal int64 = -1

// Event is a progress or failure report emitted during a discovery run.
type Event struct {
	Source  string
	Stage   string
	Current int64
	Total   int64
	Message string
	Done    bool
	Err     error
	At      time.Time
}

type Reporter interface {
	Report(Event)
}

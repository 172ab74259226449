package sqsasync

import (
	"github.com/rafidka/sqsasync/internal/invoke"
)

// Kwargs carries keyword arguments for an operation.
type Kwargs = invoke.Kwargs

// Caller executes operations by name. A client implementing it is used
// as is; any other client has its methods resolved by name.
type (
	Caller     = invoke.Caller
	CallerFunc = invoke.CallerFunc
)

// Callback receives the outcome of an operation on the loop goroutine.
// Exactly one of value and err is meaningful: err is nil on success.
type Callback func(value any, err error)

// Interest says whether the submitter wants the outcome delivered.
type Interest int

const (
	// InterestAuto picks Observed when a callback is present and
	// FireAndForget otherwise.
	InterestAuto Interest = iota
	// Observed requests have their result queued for the drain.
	Observed
	// FireAndForget requests are executed and their result dropped.
	FireAndForget
)

func (i Interest) String() string {
	switch i {
	case InterestAuto:
		return "auto"
	case Observed:
		return "observed"
	case FireAndForget:
		return "fire-and-forget"
	default:
		return "unknown"
	}
}

// Request describes one operation to run on the underlying client. It is
// consumed by exactly one worker.
type Request struct {
	// ID correlates the request with its result. A UUID is assigned on
	// submission when empty.
	ID        string
	Operation string
	Args      []any
	Kwargs    Kwargs
	Callback  Callback
	Interest  Interest
}

// Result is the single outcome of an Observed request.
type Result struct {
	RequestID string
	Operation string
	Value     any
	Err       error
	Callback  Callback
}

// Succeeded reports whether the operation completed without error.
func (r *Result) Succeeded() bool { return r.Err == nil }

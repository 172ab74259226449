package sqsasync

import (
	"errors"

	errs "github.com/rafidka/sqsasync/internal/errors"
)

// Failure kinds recorded on results. Compare with errors.Is, or extract the
// concrete type with errors.As.
type (
	ResolutionError = errs.ResolutionError
	ExecutionError  = errs.ExecutionError
	DecodeError     = errs.DecodeError
)

var (
	ErrResolution = errs.ErrResolution
	ErrExecution  = errs.ErrExecution
	ErrDecode     = errs.ErrDecode
)

var (
	// ErrConnectionStopped is returned by the submit calls after Stop.
	ErrConnectionStopped = errors.New("connection stopped")

	// ErrNoCallback is returned when an Observed request carries no callback.
	ErrNoCallback = errors.New("observed request has no callback")

	// ErrCallbackPanic wraps a panic recovered from a completion callback
	// before it is handed to the error reporter.
	ErrCallbackPanic = errors.New("callback panicked")
)

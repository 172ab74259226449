// Package errors defines the failure taxonomy shared by the dispatch engine,
// the invoker and the response decoder.
package errors

import (
	"errors"
	"fmt"
)

// Sentinels let callers test a failure's kind with errors.Is without caring
// about the concrete type.
var (
	ErrResolution = errors.New("operation not resolvable")
	ErrExecution  = errors.New("operation failed")
	ErrDecode     = errors.New("response not decodable")
)

// ResolutionError reports an operation name that does not correspond to any
// method on the underlying client.
type ResolutionError struct {
	Operation string
	Target    string // type name of the client the lookup ran against
}

func (e *ResolutionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("no such operation %q", e.Operation)
	}
	return fmt.Sprintf("no such operation %q on %s", e.Operation, e.Target)
}

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// ExecutionError wraps any failure raised while an operation ran: transport,
// auth, service-side faults, decode failures and recovered panics.
type ExecutionError struct {
	Operation string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("operation %q: %v", e.Operation, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// DecodeError reports a response body that the configured wire protocol could
// not parse against the operation's output shape.
type DecodeError struct {
	Protocol string
	Shape    string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Shape == "" {
		return fmt.Sprintf("decode %s: %v", e.Protocol, e.Err)
	}
	return fmt.Sprintf("decode %s into %s: %v", e.Protocol, e.Shape, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Classify converts an error returned by an operation into the taxonomy the
// worker records on a result. Resolution failures keep their type; everything
// else becomes an ExecutionError so decode failures abort only their own
// operation while staying reachable through errors.As.
func Classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	var ee *ExecutionError
	if errors.As(err, &ee) && ee.Operation == operation {
		return err
	}
	return &ExecutionError{Operation: operation, Err: err}
}

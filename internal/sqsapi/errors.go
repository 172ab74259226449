package sqsapi

import (
	"errors"
	"fmt"
)

// ErrMissingQueueURL is returned by operations that need a queue URL when
// none was given.
var ErrMissingQueueURL = errors.New("QueueUrl is required")

// ServiceError is an error document returned by the service.
type ServiceError struct {
	Code       string
	Message    string
	RequestID  string
	StatusCode int
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("sqs: %s (status %d)", e.Code, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += ", request id " + e.RequestID
	}
	return msg
}

// IsServiceError reports whether err is a ServiceError with the given code.
func IsServiceError(err error, code string) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Code == code
}

func serviceErrorFrom(status int, decoded map[string]any) *ServiceError {
	se := &ServiceError{StatusCode: status}
	if e, ok := decoded["Error"].(map[string]any); ok {
		se.Code, _ = e["Code"].(string)
		se.Message, _ = e["Message"].(string)
	}
	se.RequestID = metadataFrom(decoded).RequestID
	return se
}

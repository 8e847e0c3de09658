package ports

import (
	"errors"
	"fmt"
)

// How a failed remote call should be treated by the sync drainer.
type ErrorKind string

const (
	// ErrorTransient covers network drops, timeouts and 5xx responses;
	// the action stays queued and is retried on the next drain.
	ErrorTransient ErrorKind = "transient"
	// ErrorRejected is a definitive 4xx; retrying will never succeed, so
	// the action is moved to the dead-letter list.
	ErrorRejected ErrorKind = "rejected"
)

// Classified failure of a TaskAPI call.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("task api: %s (status=%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("task api: %s: %s", e.Kind, e.Message)
}

// IsRejected reports whether err is a definitive server rejection.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == ErrorRejected
}

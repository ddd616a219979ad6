package transport

import (
	"errors"
	"fmt"
)

// TransientError is a failure worth retrying: 5xx, 429, network errors and an
// open circuit breaker.
type TransientError struct {
	Service    string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Service, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a rejection that will not succeed on retry, such as a 4xx
// response other than 429.
type PermanentError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent failure (status %d): %v", e.Service, e.StatusCode, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err wraps a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

package power

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is reported when the service answers with a non-200 status.
	// Callers treat it as a recoverable, user-visible condition.
	ErrNoData = errors.New("climate service returned no data")

	// ErrMalformedResponse is reported when a 200 body lacks properties.parameter.<CODE>
	// for one of the requested codes or carries a non-numeric value.
	ErrMalformedResponse = errors.New("malformed climate service response")

	// ErrMisaligned is reported when a parameter's date keys differ from the reference code's keys.
	ErrMisaligned = errors.New("climate parameters have mismatched dates")
)

// StatusError carries the status and body of a non-200 response. It matches ErrNoData.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("climate service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNoData
}

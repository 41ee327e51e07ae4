package metrics

import (
	"errors"
	"fmt"
)

// ErrIntegrity is the sentinel wrapped by every IntegrityError.
var ErrIntegrity = errors.New("data integrity fault")

// IntegrityError aborts an aggregation run. Value is the offending count,
// key or record id.
type IntegrityError struct {
	Reason string
	Value  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrIntegrity, e.Reason, e.Value)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

func integrityf(reason, format string, args ...any) error {
	return &IntegrityError{Reason: reason, Value: fmt.Sprintf(format, args...)}
}

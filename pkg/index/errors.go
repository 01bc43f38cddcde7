package index

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when starting an engine whose Init did not succeed.
	ErrNotInitialized = errors.New("cannot start a non-initialized index")
	// ErrAlreadyStarted is returned when the background sync is already running.
	ErrAlreadyStarted = errors.New("index background sync already started")
)

// InitError reports a precondition that stops an index from starting. The index stays
// usable after the operator fixes the cause, usually by rebuilding it.
type InitError struct {
	Name   string
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

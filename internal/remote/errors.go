package remote

import (
	"errors"
	"fmt"
)

// ErrMissingScope is returned when an operation is attempted with no family
// code. It is a user-recoverable precondition failure: the caller should
// block the action and prompt for a code, never treat it as an empty result.
var ErrMissingScope = errors.New("no family code set")

// Error reports a failed remote store call: transport failure or a non-2xx
// response. Status is 0 when the request never reached the store.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

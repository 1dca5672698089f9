package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks network failures and non-2xx responses.
	ErrTransport = errors.New("transport error")
	// ErrParse marks a response body that could not be decoded.
	ErrParse = errors.New("parse error")
	// ErrNotReady is returned in non-blocking mode while a request is in flight.
	ErrNotReady = errors.New("fetch in progress")
)

// Error carries the failure kind (ErrTransport or ErrParse) plus context.
// errors.Is(err, ErrParse) distinguishes "server returned garbage" from
// "server unreachable".
type Error struct {
	Kind   error
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%v: %s: status %d: %v", e.Kind, e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%v: %s: status %d", e.Kind, e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.URL)
	}
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

package dosshclient

import (
	"errors"
	"fmt"
)

// ErrNoDialer is returned by Run when the Client has no Dialer.
var ErrNoDialer = errors.New("client has no dialer")

// RejectedError is returned when the server refused the request. Its message
// is the reason the server gave, unchanged.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return e.Reason
}

// localIOError marks a failure reading stdin or writing stdout, as opposed to
// a failure on the stream.
type localIOError struct {
	op  string
	err error
}

func (e *localIOError) Error() string {
	return fmt.Sprintf("%s: %s", e.op, e.err)
}

func (e *localIOError) Unwrap() error {
	return e.err
}

package portforwarding

import (
	"errors"
	"fmt"
)

// ErrLockedPort matches a RejectedError caused by the allow-list.
var ErrLockedPort = errors.New("locked port")

// HandshakeError is a failure to read or write the request header. It ends the
// session it happened on and nothing else.
type HandshakeError struct {
	Op  string
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake %s: %s", e.Op, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// RejectedError means the server refused a request, either because the port
// is not allowed or because the local connect failed. Its message is sent to
// the client as the close reason.
type RejectedError struct {
	Port uint16

	// Err is the connect failure. It is nil for allow-list rejections.
	Err error
}

func (e *RejectedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %d", ErrLockedPort, e.Port)
	}
	return e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrLockedPort) hold for allow-list rejections.
func (e *RejectedError) Is(target error) bool {
	return target == ErrLockedPort && e.Err == nil
}

// IsLocked reports whether err is an allow-list rejection.
func IsLocked(err error) bool {
	return errors.Is(err, ErrLockedPort)
}

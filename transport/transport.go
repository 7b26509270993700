// Package transport defines the identity-addressed connections that dossh
// runs on, and binds them to QUIC.
//
// A Conn is addressed by the PeerID of the remote endpoint, carries
// bidirectional Streams, and is closed with a numeric code and a reason that
// the remote side observes verbatim.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"hop.computer/dossh/keys"
)

// Close codes carried on the wire.
const (
	// CodeOK is a graceful close.
	CodeOK uint64 = 0

	// CodeRejected is a policy or connect rejection. The close reason is the
	// user-facing error.
	CodeRejected uint64 = 1

	// CodeFailed ends a session that failed after the request was accepted,
	// or whose request could not be read. The reason is informational.
	CodeFailed uint64 = 2
)

// Stream is a reliable, ordered, bidirectional byte stream on a Conn.
type Stream interface {
	io.Reader
	io.Writer

	// CloseWrite signals end-of-stream to the remote reader. Reads are not
	// affected.
	CloseWrite() error

	// Close aborts both directions.
	Close() error
}

// Conn is an authenticated connection to a single remote peer.
type Conn interface {
	OpenStream(ctx context.Context) (Stream, error)
	AcceptStream(ctx context.Context) (Stream, error)

	// RemotePeer is the identity the remote side proved during the handshake.
	RemotePeer() keys.PeerID
	RemoteAddr() net.Addr

	// CloseWithError closes the connection. Only the first close, local or
	// remote, takes effect.
	CloseWithError(code uint64, reason string) error

	// Done is closed once the connection is closed for any reason.
	Done() <-chan struct{}

	// Err returns the close cause once Done is closed, and nil before. A close
	// requested by either application is a *CloseError. Anything else is a
	// transport-level failure.
	Err() error
}

// Listener accepts inbound connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() net.Addr
	Close() error
}

// Dialer opens outbound connections to a peer identity.
type Dialer interface {
	Dial(ctx context.Context, peer keys.PeerID) (Conn, error)
}

// AddrResolver maps a peer identity to candidate network addresses.
type AddrResolver interface {
	Resolve(ctx context.Context, peer keys.PeerID) ([]string, error)
}

// CloseError is the close cause of a connection closed by an application,
// either locally or by the remote peer.
type CloseError struct {
	Code   uint64
	Reason string
	Remote bool
}

func (e *CloseError) Error() string {
	by := "locally"
	if e.Remote {
		by = "by peer"
	}
	if e.Reason == "" {
		return fmt.Sprintf("connection closed %s (code %d)", by, e.Code)
	}
	return fmt.Sprintf("connection closed %s (code %d): %s", by, e.Code, e.Reason)
}

// AsCloseError returns the CloseError in err's chain, if any.
func AsCloseError(err error) (*CloseError, bool) {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ErrConnClosed is returned by operations on a connection that was closed.
var ErrConnClosed = errors.New("connection closed")

// ErrStreamClosed is returned by operations on a locally aborted stream.
var ErrStreamClosed = errors.New("stream closed")

// ErrPeerMismatch is returned when the remote side of a dialed connection
// proves a different identity than the one dialed.
var ErrPeerMismatch = errors.New("peer identity mismatch")

// ErrNoAddresses is returned when a peer identity resolves to no addresses.
var ErrNoAddresses = errors.New("no known addresses for peer")

// ErrBadCertificate is returned when a peer presents a certificate that does
// not carry a self-signed Ed25519 identity.
var ErrBadCertificate = errors.New("bad peer certificate")

// Package portforwarding implements the request that opens a forwarded
// session. The first bytes on a freshly opened stream are the requested port
// as a big-endian uint16. There is no reply: a refused request is reported by
// closing the connection with transport.CodeRejected and a reason.
package portforwarding

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"

	"hop.computer/dossh/common"
	"hop.computer/dossh/ports"
	"hop.computer/dossh/transport"
)

// RequestLen is the size of the request header.
const RequestLen = 2

// WriteRequest sends the request header for port.
func WriteRequest(w io.Writer, port uint16) error {
	var b [RequestLen]byte
	binary.BigEndian.PutUint16(b[:], port)
	if _, err := w.Write(b[:]); err != nil {
		return &HandshakeError{Op: "write", Err: err}
	}
	return nil
}

// ReadRequest reads exactly one request header. A stream that ends before two
// bytes arrive is a HandshakeError.
func ReadRequest(r io.Reader) (uint16, error) {
	var port uint16
	if err := binary.Read(r, binary.BigEndian, &port); err != nil {
		return 0, &HandshakeError{Op: "read", Err: err}
	}
	return port, nil
}

// Request opens a stream on conn and asks for port. The returned stream is a
// raw byte pipe to the server's local port, unless the server rejects the
// request by closing conn.
func Request(ctx context.Context, conn transport.Conn, port uint16) (transport.Stream, error) {
	s, err := conn.OpenStream(ctx)
	if err != nil {
		return nil, &HandshakeError{Op: "open", Err: err}
	}
	if err := WriteRequest(s, port); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Dialer opens local connections. *net.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Forwarder is the server side of a request. It is shared by every session
// and never mutated.
type Forwarder struct {
	Allow  *ports.AllowList
	Dialer Dialer
}

// Authorize reports whether port may be forwarded.
func (f *Forwarder) Authorize(port uint16) bool {
	return f.Allow.Authorize(port)
}

// Accept reads a request from r, checks it against the allow-list and, if
// allowed, connects to the local port. The returned port is the one the client
// asked for and is set whenever the header was read, including on rejection.
func (f *Forwarder) Accept(ctx context.Context, r io.Reader, onPhase func(Phase)) (net.Conn, uint16, error) {
	if onPhase == nil {
		onPhase = func(Phase) {}
	}
	onPhase(AwaitingRequest)
	port, err := ReadRequest(r)
	if err != nil {
		return nil, 0, err
	}

	onPhase(Authorizing)
	if !f.Authorize(port) {
		onPhase(Rejected)
		return nil, port, &RejectedError{Port: port}
	}

	onPhase(Connecting)
	c, err := f.dial(ctx, port)
	if err != nil {
		onPhase(Rejected)
		return nil, port, &RejectedError{Port: port, Err: err}
	}
	return c, port, nil
}

func (f *Forwarder) dial(ctx context.Context, port uint16) (net.Conn, error) {
	d := f.Dialer
	if d == nil {
		d = &net.Dialer{}
	}
	addr := net.JoinHostPort(common.ForwardHost, strconv.Itoa(int(port)))
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		logrus.Debugf("PF: couldn't connect to %s: %s", addr, err)
		return nil, err
	}
	logrus.Debugf("PF: dialed %s", addr)
	return c, nil
}

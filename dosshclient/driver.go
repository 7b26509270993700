package dosshclient

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"hop.computer/dossh/transport"
)

// closeGrace bounds how long a failed stream waits for the connection close
// that usually explains it.
var closeGrace = time.Second

type endKind int

const (
	endClean endKind = iota
	endLocal
	endRemote
)

type end struct {
	kind endKind
	err  error
}

type localReader struct {
	r io.Reader
}

func (l localReader) Read(b []byte) (int, error) {
	n, err := l.r.Read(b)
	if err != nil && err != io.EOF {
		err = &localIOError{op: "read stdin", err: err}
	}
	return n, err
}

type localWriter struct {
	w io.Writer
}

func (l localWriter) Write(b []byte) (int, error) {
	n, err := l.w.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		err = &localIOError{op: "write stdout", err: err}
	}
	return n, err
}

func classify(err error) end {
	var le *localIOError
	if errors.As(err, &le) {
		return end{kind: endLocal, err: err}
	}
	return end{kind: endRemote, err: err}
}

// Drive relays in to stream and stream to out until the first of: the stream
// reaches end-of-stream, local I/O fails, the stream fails, or conn is closed.
// Drive always leaves conn closed.
//
// End-of-stream on in is forwarded with CloseWrite and does not end the
// session. A clean end-of-stream from the server, or a close by the server
// with transport.CodeOK, returns nil. A close with transport.CodeRejected
// returns a *RejectedError carrying the server's reason. Any other close is
// returned as its *transport.CloseError.
func Drive(ctx context.Context, conn transport.Conn, stream transport.Stream, in io.Reader, out io.Writer) error {
	ends := make(chan end, 3)

	go func() {
		n, err := io.Copy(stream, localReader{in})
		logrus.Debugf("C: sent %d bytes, err: %v", n, err)
		if err == nil {
			if err = stream.CloseWrite(); err == nil {
				return
			}
		}
		ends <- classify(err)
	}()
	go func() {
		n, err := io.Copy(localWriter{out}, stream)
		logrus.Debugf("C: received %d bytes, err: %v", n, err)
		if err == nil {
			ends <- end{kind: endClean}
			return
		}
		ends <- classify(err)
	}()

	var e end
	select {
	case e = <-ends:
	case <-conn.Done():
		e = end{kind: endRemote, err: conn.Err()}
	case <-ctx.Done():
		conn.CloseWithError(transport.CodeOK, "")
		return ctx.Err()
	}

	switch e.kind {
	case endClean:
		conn.CloseWithError(transport.CodeOK, "")
		return nil
	case endLocal:
		conn.CloseWithError(transport.CodeOK, "")
		return e.err
	}
	return closeOutcome(conn, e.err)
}

// closeOutcome turns a stream or connection failure into the error reported
// to the user, preferring the close cause sent by the server.
func closeOutcome(conn transport.Conn, err error) error {
	ce, ok := transport.AsCloseError(err)
	if !ok {
		t := time.NewTimer(closeGrace)
		select {
		case <-conn.Done():
		case <-t.C:
		}
		t.Stop()
		ce, ok = transport.AsCloseError(conn.Err())
	}
	conn.CloseWithError(transport.CodeOK, "")
	if !ok {
		if err == nil {
			err = conn.Err()
		}
		return err
	}

	switch {
	case ce.Remote && ce.Code == transport.CodeOK:
		return nil
	case ce.Remote && ce.Code == transport.CodeRejected:
		return &RejectedError{Reason: ce.Reason}
	default:
		return ce
	}
}

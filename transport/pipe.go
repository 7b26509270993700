package transport

import (
	"context"
	"io"
	"net"
	"sync"

	"hop.computer/dossh/keys"
)

// Pipe returns the two ends of an in-memory connection between identities a
// and b. The first Conn belongs to a, so its RemotePeer is b. Streams are
// synchronous: a Write blocks until the other end reads it.
func Pipe(a, b keys.PeerID) (Conn, Conn) {
	ca := newPipeConn(a, b)
	cb := newPipeConn(b, a)
	ca.peer = cb
	cb.peer = ca
	return ca, cb
}

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

type pipeConn struct {
	local, remote keys.PeerID
	peer          *pipeConn

	incoming chan *pipeStream
	done     chan struct{}

	m sync.Mutex
	// +checklocks:m
	err error
	// +checklocks:m
	streams []*pipeStream
}

func newPipeConn(local, remote keys.PeerID) *pipeConn {
	return &pipeConn{
		local:    local,
		remote:   remote,
		incoming: make(chan *pipeStream, 8),
		done:     make(chan struct{}),
	}
}

func (c *pipeConn) OpenStream(ctx context.Context) (Stream, error) {
	mine, theirs := newPipeStreamPair()
	if !c.track(mine) {
		return nil, c.Err()
	}
	if !c.peer.track(theirs) {
		mine.abort(ErrConnClosed)
		return nil, ErrConnClosed
	}
	select {
	case c.peer.incoming <- theirs:
		return mine, nil
	case <-ctx.Done():
		mine.Close()
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.Err()
	}
}

func (c *pipeConn) AcceptStream(ctx context.Context) (Stream, error) {
	select {
	case <-c.done:
		return nil, c.Err()
	default:
	}
	select {
	case s := <-c.incoming:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.Err()
	}
}

func (c *pipeConn) RemotePeer() keys.PeerID { return c.remote }

func (c *pipeConn) RemoteAddr() net.Addr { return pipeAddr(c.remote.Short()) }

func (c *pipeConn) CloseWithError(code uint64, reason string) error {
	if c.close(&CloseError{Code: code, Reason: reason}) {
		c.peer.close(&CloseError{Code: code, Reason: reason, Remote: true})
	}
	return nil
}

func (c *pipeConn) Done() <-chan struct{} { return c.done }

func (c *pipeConn) Err() error {
	c.m.Lock()
	defer c.m.Unlock()
	return c.err
}

func (c *pipeConn) track(s *pipeStream) bool {
	c.m.Lock()
	defer c.m.Unlock()
	if c.err != nil {
		return false
	}
	c.streams = append(c.streams, s)
	return true
}

// close records err as the close cause and aborts every stream. It reports
// false if the connection was already closed.
func (c *pipeConn) close(err error) bool {
	c.m.Lock()
	if c.err != nil {
		c.m.Unlock()
		return false
	}
	c.err = err
	streams := c.streams
	c.streams = nil
	close(c.done)
	c.m.Unlock()

	for _, s := range streams {
		s.abort(err)
	}
	return true
}

type pipeStream struct {
	r *io.PipeReader
	w *io.PipeWriter

	// rw feeds r and wr drains w. Both are held by the other end.
	rw *io.PipeWriter
	wr *io.PipeReader
}

func newPipeStreamPair() (*pipeStream, *pipeStream) {
	abR, abW := io.Pipe()
	baR, baW := io.Pipe()
	a := &pipeStream{r: baR, w: abW, rw: baW, wr: abR}
	b := &pipeStream{r: abR, w: baW, rw: abW, wr: baR}
	return a, b
}

func (s *pipeStream) Read(b []byte) (int, error)  { return s.r.Read(b) }
func (s *pipeStream) Write(b []byte) (int, error) { return s.w.Write(b) }

func (s *pipeStream) CloseWrite() error {
	return s.w.Close()
}

func (s *pipeStream) Close() error {
	s.abort(ErrStreamClosed)
	s.r.CloseWithError(ErrStreamClosed)
	s.w.CloseWithError(ErrStreamClosed)
	return nil
}

// abort makes pending and future reads and writes on this end fail with err.
// Data already terminated by CloseWrite still reads as EOF.
func (s *pipeStream) abort(err error) {
	s.rw.CloseWithError(err)
	s.wr.CloseWithError(err)
}

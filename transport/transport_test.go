package transport

import (
	"context"
	"io"
	"testing"
	"time"

	"gotest.tools/assert"

	"hop.computer/dossh/keys"
)

type staticResolver []string

func (r staticResolver) Resolve(context.Context, keys.PeerID) ([]string, error) {
	return r, nil
}

func TestPipeStreams(t *testing.T) {
	a, b := keys.GenerateIdentity().PeerID(), keys.GenerateIdentity().PeerID()
	ca, cb := Pipe(a, b)
	assert.Equal(t, ca.RemotePeer(), b)
	assert.Equal(t, cb.RemotePeer(), a)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sa, err := ca.OpenStream(ctx)
	assert.NilError(t, err)
	sb, err := cb.AcceptStream(ctx)
	assert.NilError(t, err)

	go func() {
		sa.Write([]byte("hello"))
		sa.CloseWrite()
	}()
	got, err := io.ReadAll(sb)
	assert.NilError(t, err)
	assert.Equal(t, string(got), "hello")

	// The other direction is still open after the half-close.
	go func() {
		sb.Write([]byte("world"))
		sb.CloseWrite()
	}()
	got, err = io.ReadAll(sa)
	assert.NilError(t, err)
	assert.Equal(t, string(got), "world")
}

func TestPipeClose(t *testing.T) {
	a, b := keys.GenerateIdentity().PeerID(), keys.GenerateIdentity().PeerID()
	ca, cb := Pipe(a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sa, err := ca.OpenStream(ctx)
	assert.NilError(t, err)

	assert.Assert(t, ca.Err() == nil)

	readErr := make(chan error, 1)
	go func() {
		_, err := sa.Read(make([]byte, 1))
		readErr <- err
	}()

	assert.NilError(t, cb.CloseWithError(CodeRejected, "locked port: 80"))
	// Only the first close counts.
	assert.NilError(t, ca.CloseWithError(CodeOK, ""))

	select {
	case <-ca.Done():
	case <-ctx.Done():
		t.Fatal("timed out waiting for close")
	}

	ce, ok := AsCloseError(ca.Err())
	assert.Assert(t, ok)
	assert.Equal(t, ce.Code, CodeRejected)
	assert.Equal(t, ce.Reason, "locked port: 80")
	assert.Assert(t, ce.Remote)

	ce, ok = AsCloseError(cb.Err())
	assert.Assert(t, ok)
	assert.Assert(t, !ce.Remote)

	select {
	case err := <-readErr:
		assert.Assert(t, err != nil)
	case <-ctx.Done():
		t.Fatal("pending read was not aborted")
	}

	_, err = ca.OpenStream(ctx)
	assert.Assert(t, err != nil)
	_, err = cb.AcceptStream(ctx)
	assert.Assert(t, err != nil)
}

func TestCloseErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      CloseError
		expected string
	}{
		{
			name:     "remote with reason",
			err:      CloseError{Code: 1, Reason: "locked port: 80", Remote: true},
			expected: "connection closed by peer (code 1): locked port: 80",
		},
		{
			name:     "local graceful",
			err:      CloseError{},
			expected: "connection closed locally (code 0)",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.err.Error(), test.expected)
		})
	}
}

func TestQUICLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverID := keys.GenerateIdentity()
	s, err := Listen("127.0.0.1:0", ServerConfig{Identity: serverID})
	assert.NilError(t, err)
	defer s.Close()

	accepted := make(chan Conn, 1)
	go func() {
		c, err := s.Accept(ctx)
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	clientID := keys.GenerateIdentity()
	client := NewClient(ClientConfig{
		Identity: clientID,
		Resolver: staticResolver{s.Addr().String()},
	})
	cc, err := client.Dial(ctx, serverID.PeerID())
	assert.NilError(t, err)
	assert.Equal(t, cc.RemotePeer(), serverID.PeerID())

	sc, ok := <-accepted
	assert.Assert(t, ok, "server did not accept")
	assert.Equal(t, sc.RemotePeer(), clientID.PeerID())

	cs, err := cc.OpenStream(ctx)
	assert.NilError(t, err)
	_, err = cs.Write([]byte{0, 80})
	assert.NilError(t, err)
	assert.NilError(t, cs.CloseWrite())

	ss, err := sc.AcceptStream(ctx)
	assert.NilError(t, err)
	got, err := io.ReadAll(ss)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, []byte{0, 80})

	assert.NilError(t, sc.CloseWithError(CodeRejected, "locked port: 80"))
	select {
	case <-cc.Done():
	case <-ctx.Done():
		t.Fatal("client never observed the close")
	}
	ce, ok := AsCloseError(cc.Err())
	assert.Assert(t, ok, "got %v", cc.Err())
	assert.Equal(t, ce.Code, CodeRejected)
	assert.Equal(t, ce.Reason, "locked port: 80")
	assert.Assert(t, ce.Remote)

	ce, ok = AsCloseError(sc.Err())
	assert.Assert(t, ok, "got %v", sc.Err())
	assert.Assert(t, !ce.Remote)
}

func TestQUICPinsPeer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Listen("127.0.0.1:0", ServerConfig{Identity: keys.GenerateIdentity()})
	assert.NilError(t, err)
	defer s.Close()

	client := NewClient(ClientConfig{Resolver: staticResolver{s.Addr().String()}})
	_, err = client.Dial(ctx, keys.GenerateIdentity().PeerID())
	assert.Assert(t, err != nil)
}

func TestDialNoAddresses(t *testing.T) {
	client := NewClient(ClientConfig{Resolver: staticResolver{}})
	_, err := client.Dial(context.Background(), keys.GenerateIdentity().PeerID())
	assert.ErrorContains(t, err, ErrNoAddresses.Error())
}

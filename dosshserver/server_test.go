package dosshserver

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"
	"gotest.tools/assert"

	"hop.computer/dossh/keys"
	"hop.computer/dossh/portforwarding"
	"hop.computer/dossh/ports"
	"hop.computer/dossh/transport"
)

type chanListener struct {
	conns  chan transport.Conn
	closed chan struct{}
	once   sync.Once
}

func newChanListener() *chanListener {
	return &chanListener{
		conns:  make(chan transport.Conn),
		closed: make(chan struct{}),
	}
}

func (l *chanListener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *chanListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (l *chanListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

type failDialer struct {
	t *testing.T
}

func (d failDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.t.Errorf("unexpected dial to %s", address)
	return nil, io.ErrUnexpectedEOF
}

type harness struct {
	t      *testing.T
	l      *chanListener
	s      *Server
	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, config Config) *harness {
	if config.Linger == 0 {
		config.Linger = 100 * time.Millisecond
	}
	l := newChanListener()
	s := NewServer(l, config)
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{t: t, l: l, s: s, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- s.Serve(ctx) }()
	return h
}

// connect hands a new in-memory connection to the server and returns the
// client end.
func (h *harness) connect() transport.Conn {
	client, server := transport.Pipe(keys.GenerateIdentity().PeerID(), keys.GenerateIdentity().PeerID())
	h.l.conns <- server
	return client
}

func (h *harness) stop() {
	h.cancel()
	assert.NilError(h.t, <-h.done)
}

func waitClose(t *testing.T, c transport.Conn) *transport.CloseError {
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
	}
	ce, ok := transport.AsCloseError(c.Err())
	assert.Assert(t, ok, "close cause %v", c.Err())
	return ce
}

func startEcho(t *testing.T) (uint16, func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer c.Close()
				io.Copy(c, c)
			}()
		}
	}()
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	return port, func() {
		ln.Close()
		wg.Wait()
	}
}

func TestLockedPortRejected(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, Config{
		Allow:  ports.NewAllowList(22),
		Dialer: failDialer{t},
	})
	defer h.stop()

	client := h.connect()
	_, err := portforwarding.Request(context.Background(), client, 80)
	assert.NilError(t, err)

	ce := waitClose(t, client)
	assert.Assert(t, ce.Remote)
	assert.Equal(t, ce.Code, transport.CodeRejected)
	assert.Equal(t, ce.Reason, "locked port: 80")
}

func TestEchoRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	port, stopEcho := startEcho(t)
	defer stopEcho()

	h := newHarness(t, Config{Allow: ports.NewAllowList(port)})
	defer h.stop()

	client := h.connect()
	s, err := portforwarding.Request(context.Background(), client, port)
	assert.NilError(t, err)

	_, err = s.Write([]byte("ping"))
	assert.NilError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(s, buf)
	assert.NilError(t, err)
	assert.Equal(t, string(buf), "ping")

	assert.NilError(t, client.CloseWithError(transport.CodeOK, ""))
	ce := waitClose(t, client)
	assert.Assert(t, !ce.Remote)
	assert.Equal(t, ce.Code, transport.CodeOK)
}

func TestEchoServerHangsUp(t *testing.T) {
	defer goleak.VerifyNone(t)

	port, stopEcho := startEcho(t)
	defer stopEcho()

	h := newHarness(t, Config{Allow: ports.NewAllowList(port)})
	defer h.stop()

	client := h.connect()
	s, err := portforwarding.Request(context.Background(), client, port)
	assert.NilError(t, err)

	_, err = s.Write([]byte("bye"))
	assert.NilError(t, err)
	// The echo server sees end-of-stream, echoes what it got, and hangs up.
	assert.NilError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	assert.NilError(t, err)
	assert.Equal(t, string(got), "bye")

	// Nobody closes the client, so the server closes after the linger.
	ce := waitClose(t, client)
	assert.Assert(t, ce.Remote)
	assert.Equal(t, ce.Code, transport.CodeOK)
}

func TestConnectRefused(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()

	h := newHarness(t, Config{Allow: ports.NewAllowList(port)})
	defer h.stop()

	client := h.connect()
	_, err = portforwarding.Request(context.Background(), client, port)
	assert.NilError(t, err)

	ce := waitClose(t, client)
	assert.Assert(t, ce.Remote)
	assert.Equal(t, ce.Code, transport.CodeRejected)
	assert.Assert(t, strings.Contains(ce.Reason, "connection refused"), "reason %q", ce.Reason)
}

func TestTruncatedRequest(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, Config{Dialer: failDialer{t}})
	defer h.stop()

	client := h.connect()
	s, err := client.OpenStream(context.Background())
	assert.NilError(t, err)
	_, err = s.Write([]byte{0})
	assert.NilError(t, err)
	assert.NilError(t, s.CloseWrite())

	ce := waitClose(t, client)
	assert.Assert(t, ce.Remote)
	assert.Equal(t, ce.Code, transport.CodeFailed)
}

func TestHangUpDuringRequestIsHandshakeFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := prometheus.NewRegistry()
	h := newHarness(t, Config{Dialer: failDialer{t}, Metrics: NewMetrics(reg)})
	defer h.stop()

	client := h.connect()
	s, err := client.OpenStream(context.Background())
	assert.NilError(t, err)
	_, err = s.Write([]byte{0})
	assert.NilError(t, err)
	// A clean close from the client does not complete the request.
	assert.NilError(t, client.CloseWithError(transport.CodeOK, ""))

	deadline := time.Now().Add(5 * time.Second)
	for sessionCount(t, reg, outcomeHandshake) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, sessionCount(t, reg, outcomeHandshake), 1.0)
	assert.Equal(t, sessionCount(t, reg, outcomeOK), 0.0)
}

// sessionCount reads dossh_sessions_total for one outcome.
func sessionCount(t *testing.T, g prometheus.Gatherer, outcome string) float64 {
	mfs, err := g.Gather()
	assert.NilError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "dossh_sessions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSessionsAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t)

	port, stopEcho := startEcho(t)
	defer stopEcho()

	h := newHarness(t, Config{Allow: ports.NewAllowList(port)})
	defer h.stop()

	// A client that never sends its request must not hold up the others.
	stuck := h.connect()

	locked := h.connect()
	_, err := portforwarding.Request(context.Background(), locked, port+1)
	assert.NilError(t, err)
	assert.Equal(t, waitClose(t, locked).Code, transport.CodeRejected)

	ok := h.connect()
	s, err := portforwarding.Request(context.Background(), ok, port)
	assert.NilError(t, err)
	_, err = s.Write([]byte("x"))
	assert.NilError(t, err)
	buf := make([]byte, 1)
	_, err = io.ReadFull(s, buf)
	assert.NilError(t, err)
	assert.Equal(t, string(buf), "x")
	ok.CloseWithError(transport.CodeOK, "")

	stuck.CloseWithError(transport.CodeOK, "")
}

func TestStatusHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := prometheus.NewRegistry()
	id := keys.GenerateIdentity().PeerID()
	h := newHarness(t, Config{
		Identity: id,
		Allow:    ports.NewAllowList(22, 8080),
		Metrics:  NewMetrics(reg),
	})
	defer h.stop()

	// Blocks in the request phase until closed.
	client := h.connect()
	defer client.CloseWithError(transport.CodeOK, "")

	srv := httptest.NewServer(NewStatusHandler(h.s, reg))
	defer srv.Close()

	var out StatusResponse
	assert.Assert(t, pollStatus(t, srv.URL, &out, func() bool { return len(out.Sessions) == 1 }))
	assert.Equal(t, out.PeerID, id.String())
	assert.DeepEqual(t, out.AllowedPorts, []uint16{22, 8080})
	assert.Equal(t, out.Sessions[0].Phase, portforwarding.AwaitingRequest.String())

	hc := &http.Client{}
	defer hc.CloseIdleConnections()
	resp, err := hc.Get(srv.URL + "/metrics")
	assert.NilError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(body), "dossh_active_sessions 1"))
}

func pollStatus(t *testing.T, url string, out *StatusResponse, cond func() bool) bool {
	client := &http.Client{}
	defer client.CloseIdleConnections()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/status")
		assert.NilError(t, err)
		*out = StatusResponse{}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		assert.NilError(t, err)
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestWriteJSONFailureIsServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, map[string]any{"bad": make(chan int)})
	assert.Equal(t, rec.Code, http.StatusInternalServerError)
	assert.Assert(t, rec.Header().Get("Content-Type") != "application/json")

	rec = httptest.NewRecorder()
	writeJSON(rec, StatusResponse{PeerID: "x"})
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Header().Get("Content-Type"), "application/json")
	var out StatusResponse
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, out.PeerID, "x")
}

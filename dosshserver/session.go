package dosshserver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"hop.computer/dossh/portforwarding"
	"hop.computer/dossh/proxy"
	"hop.computer/dossh/transport"
)

type sessID uint32

// session supervises one accepted connection: request, relay, close.
type session struct {
	id      sessID
	conn    transport.Conn
	server  *Server
	started time.Time

	phase atomic.Int32
	port  atomic.Uint32
}

// SessionInfo describes an open session.
type SessionInfo struct {
	ID      uint32    `json:"id"`
	Peer    string    `json:"peer"`
	Addr    string    `json:"addr"`
	Port    uint16    `json:"port,omitempty"`
	Phase   string    `json:"phase"`
	Started time.Time `json:"started"`
}

func (sess *session) info() SessionInfo {
	return SessionInfo{
		ID:      uint32(sess.id),
		Peer:    sess.conn.RemotePeer().String(),
		Addr:    sess.conn.RemoteAddr().String(),
		Port:    uint16(sess.port.Load()),
		Phase:   portforwarding.Phase(sess.phase.Load()).String(),
		Started: sess.started,
	}
}

func (sess *session) setPhase(p portforwarding.Phase) {
	sess.phase.Store(int32(p))
}

// run is the only place the connection is closed, and it closes it exactly
// once, whatever forward returns.
func (sess *session) run(ctx context.Context) {
	peer := sess.conn.RemotePeer()
	logrus.Infof("S: Got connection: %s from %s", peer, sess.conn.RemoteAddr())

	err := sess.forward(ctx)
	relaying := portforwarding.Phase(sess.phase.Load()) == portforwarding.Relaying
	if err != nil && relaying && closedGracefullyByPeer(err, sess.conn) {
		// The client finished and hung up while the relay was still reading.
		// A hang-up before that point leaves the request unfinished and stays
		// an error.
		err = nil
	}
	code, reason := closeCode(err)

	if err == nil {
		sess.setPhase(portforwarding.Closed)
		select {
		case <-sess.conn.Done():
		case <-time.After(sess.server.config.Linger):
		case <-ctx.Done():
		}
	}
	sess.conn.CloseWithError(code, reason)
	<-sess.conn.Done()

	outcome := outcomeOf(err)
	sess.server.config.Metrics.sessionFinished(outcome, time.Since(sess.started))
	switch outcome {
	case outcomeOK:
		logrus.Infof("S: Closed connection: %s", peer)
	case outcomeLocked, outcomeRefused:
		logrus.Warnf("S: rejected %s: %s", peer, err)
	default:
		logrus.Errorf("S: connection %s failed: %s", peer, err)
	}
}

// forward runs the request and the relay. A panic on this path is turned
// into an error so that run still closes the connection.
func (sess *session) forward(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
		}
	}()

	sess.setPhase(portforwarding.AwaitingRequest)
	stream, err := sess.conn.AcceptStream(ctx)
	if err != nil {
		return &portforwarding.HandshakeError{Op: "accept", Err: err}
	}

	local, port, err := sess.server.forwarder.Accept(ctx, stream, sess.setPhase)
	sess.port.Store(uint32(port))
	if err != nil {
		// The stream is left alone so that the close reason is the first
		// thing the client observes.
		return err
	}
	logrus.Infof("S: Created new connection with port %d", port)

	sess.setPhase(portforwarding.Relaying)
	stats, err := proxy.Relay(ctx, local, stream)
	sess.server.config.Metrics.relayed(stats.LocalToRemote, stats.RemoteToLocal)
	return err
}

// closeCode maps a session result onto the close sent to the client.
func closeCode(err error) (uint64, string) {
	if err == nil {
		return transport.CodeOK, ""
	}
	var re *portforwarding.RejectedError
	if errors.As(err, &re) {
		return transport.CodeRejected, re.Error()
	}
	return transport.CodeFailed, err.Error()
}

func outcomeOf(err error) string {
	var re *portforwarding.RejectedError
	var he *portforwarding.HandshakeError
	switch {
	case err == nil:
		return outcomeOK
	case portforwarding.IsLocked(err):
		return outcomeLocked
	case errors.As(err, &re):
		return outcomeRefused
	case errors.As(err, &he):
		return outcomeHandshake
	default:
		return outcomeFailed
	}
}

func closedGracefullyByPeer(err error, conn transport.Conn) bool {
	if ce, ok := transport.AsCloseError(err); ok {
		return ce.Remote && ce.Code == transport.CodeOK
	}
	select {
	case <-conn.Done():
	default:
		return false
	}
	ce, ok := transport.AsCloseError(conn.Err())
	return ok && ce.Remote && ce.Code == transport.CodeOK
}

// Package dosshserver accepts identity-addressed connections and forwards each
// one to a port on the local host.
package dosshserver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"hop.computer/dossh/common"
	"hop.computer/dossh/keys"
	"hop.computer/dossh/portforwarding"
	"hop.computer/dossh/ports"
	"hop.computer/dossh/transport"
)

// Config holds everything a Server needs besides its listener. It is read
// only once Serve starts.
type Config struct {
	// Identity is the server's own identity, reported by the status endpoint.
	Identity keys.PeerID

	Allow *ports.AllowList

	// Dialer opens local connections. A net.Dialer is used when nil.
	Dialer portforwarding.Dialer

	// Linger bounds how long a session that finished cleanly waits for the
	// client to close first. Zero means common.DefaultCloseLinger.
	Linger time.Duration

	// Metrics may be nil.
	Metrics *Metrics
}

// Server runs one session per accepted connection.
type Server struct {
	config    Config
	listener  transport.Listener
	forwarder *portforwarding.Forwarder

	// +checklocks:sessionLock
	sessions      map[sessID]*session
	sessionLock   sync.Mutex
	nextSessionID atomic.Uint32
	wg            sync.WaitGroup
}

// NewServer returns a Server that accepts from l.
func NewServer(l transport.Listener, config Config) *Server {
	if config.Allow == nil {
		config.Allow = ports.NewAllowList()
	}
	if config.Linger == 0 {
		config.Linger = common.DefaultCloseLinger
	}
	return &Server{
		config:   config,
		listener: l,
		forwarder: &portforwarding.Forwarder{
			Allow:  config.Allow,
			Dialer: config.Dialer,
		},
		sessions: make(map[sessID]*session),
	}
}

// Serve accepts connections until ctx is cancelled or the listener fails.
// Each connection is handled on its own goroutine, so a stuck peer never
// blocks the accept loop. Serve waits for every session to finish before
// returning, and returns nil when stopped by ctx.
func (s *Server) Serve(ctx context.Context) error {
	defer s.wg.Wait()
	logrus.Infof("S: serving ports %s", s.config.Allow)
	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		s.startSession(ctx, conn)
	}
}

func (s *Server) startSession(ctx context.Context, conn transport.Conn) {
	sess := &session{
		id:      sessID(s.nextSessionID.Add(1)),
		conn:    conn,
		server:  s,
		started: time.Now(),
	}
	s.sessionLock.Lock()
	s.sessions[sess.id] = sess
	s.sessionLock.Unlock()
	s.config.Metrics.sessionStarted()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.removeSession(sess.id)
		sess.run(ctx)
	}()
}

func (s *Server) removeSession(id sessID) {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()
	delete(s.sessions, id)
}

// Sessions returns a snapshot of the open sessions.
func (s *Server) Sessions() []SessionInfo {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info())
	}
	return out
}

// Close stops accepting new connections. Running sessions are not affected;
// cancel the context passed to Serve to end them.
func (s *Server) Close() error {
	return s.listener.Close()
}

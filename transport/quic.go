package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"

	"hop.computer/dossh/common"
	"hop.computer/dossh/keys"
)

// ServerConfig contains server-specific transport settings.
type ServerConfig struct {
	Identity *keys.Identity

	// Zero values fall back to common.KeepAlivePeriod and
	// common.MaxIdleTimeout.
	KeepAlive   time.Duration
	IdleTimeout time.Duration
}

// ClientConfig contains client-specific transport settings.
type ClientConfig struct {
	// Identity presented to the server. A fresh identity is generated per
	// Dial when nil.
	Identity *keys.Identity

	Resolver AddrResolver

	KeepAlive   time.Duration
	IdleTimeout time.Duration
}

func quicConfig(keepAlive, idle time.Duration) *quic.Config {
	if keepAlive == 0 {
		keepAlive = common.KeepAlivePeriod
	}
	if idle == 0 {
		idle = common.MaxIdleTimeout
	}
	return &quic.Config{
		KeepAlivePeriod: keepAlive,
		MaxIdleTimeout:  idle,
	}
}

// Server is a QUIC Listener.
type Server struct {
	ln *quic.Listener
}

var _ Listener = &Server{}

// Listen binds a UDP socket at addr and accepts connections authenticated
// as config.Identity.
func Listen(addr string, config ServerConfig) (*Server, error) {
	if config.Identity == nil {
		return nil, errors.New("transport: server needs an identity")
	}
	tlsConf, err := serverTLSConfig(config.Identity)
	if err != nil {
		return nil, err
	}
	ln, err := quic.ListenAddr(addr, tlsConf, quicConfig(config.KeepAlive, config.IdleTimeout))
	if err != nil {
		return nil, err
	}
	logrus.Infof("transport: listening at %s", ln.Addr())
	return &Server{ln: ln}, nil
}

// Accept returns the next connection whose handshake completed. Connections
// presenting an unusable certificate are closed and skipped.
func (s *Server) Accept(ctx context.Context) (Conn, error) {
	for {
		qc, err := s.ln.Accept(ctx)
		if err != nil {
			return nil, err
		}
		var raw [][]byte
		for _, c := range qc.ConnectionState().TLS.PeerCertificates {
			raw = append(raw, c.Raw)
		}
		peer, err := peerFromCertificates(raw)
		if err != nil {
			logrus.Warnf("transport: dropping connection from %s: %s", qc.RemoteAddr(), err)
			qc.CloseWithError(quic.ApplicationErrorCode(CodeRejected), err.Error())
			continue
		}
		return &quicConn{qc: qc, peer: peer}, nil
	}
}

// Addr returns the bound UDP address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Close stops accepting connections. Established connections are not closed.
func (s *Server) Close() error {
	return s.ln.Close()
}

// Client dials QUIC connections to peer identities.
type Client struct {
	config ClientConfig
}

var _ Dialer = &Client{}

// NewClient returns a Client that resolves peers with config.Resolver.
func NewClient(config ClientConfig) *Client {
	return &Client{config: config}
}

// Dial resolves peer and tries each address in turn. The connection only
// completes if the remote side proves it holds peer's private key.
func (c *Client) Dial(ctx context.Context, peer keys.PeerID) (Conn, error) {
	if c.config.Resolver == nil {
		return nil, ErrNoAddresses
	}
	addrs, err := c.config.Resolver.Resolve(ctx, peer)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoAddresses, peer)
	}

	id := c.config.Identity
	if id == nil {
		id = keys.GenerateIdentity()
	}
	tlsConf, err := clientTLSConfig(id, peer)
	if err != nil {
		return nil, err
	}
	qconf := quicConfig(c.config.KeepAlive, c.config.IdleTimeout)

	var errs []error
	for _, addr := range addrs {
		logrus.Debugf("transport: dialing %s at %s", peer.Short(), addr)
		qc, err := quic.DialAddr(ctx, addr, tlsConf.Clone(), qconf)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return &quicConn{qc: qc, peer: peer}, nil
	}
	return nil, errors.Join(errs...)
}

type quicConn struct {
	qc   *quic.Conn
	peer keys.PeerID
}

func (c *quicConn) OpenStream(ctx context.Context) (Stream, error) {
	s, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	return &quicStream{s: s}, nil
}

func (c *quicConn) AcceptStream(ctx context.Context) (Stream, error) {
	s, err := c.qc.AcceptStream(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	return &quicStream{s: s}, nil
}

func (c *quicConn) RemotePeer() keys.PeerID { return c.peer }

func (c *quicConn) RemoteAddr() net.Addr { return c.qc.RemoteAddr() }

func (c *quicConn) CloseWithError(code uint64, reason string) error {
	return c.qc.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

func (c *quicConn) Done() <-chan struct{} {
	return c.qc.Context().Done()
}

func (c *quicConn) Err() error {
	ctx := c.qc.Context()
	if ctx.Err() == nil {
		return nil
	}
	return convertError(context.Cause(ctx))
}

// convertError maps application close errors onto CloseError.
func convertError(err error) error {
	var ae *quic.ApplicationError
	if errors.As(err, &ae) {
		return &CloseError{
			Code:   uint64(ae.ErrorCode),
			Reason: ae.ErrorMessage,
			Remote: ae.Remote,
		}
	}
	return err
}

type quicStream struct {
	s *quic.Stream
}

func (s *quicStream) Read(b []byte) (int, error) {
	n, err := s.s.Read(b)
	if err != nil && err != io.EOF {
		err = convertError(err)
	}
	return n, err
}

func (s *quicStream) Write(b []byte) (int, error) {
	n, err := s.s.Write(b)
	if err != nil {
		err = convertError(err)
	}
	return n, err
}

func (s *quicStream) CloseWrite() error {
	return s.s.Close()
}

func (s *quicStream) Close() error {
	s.s.CancelRead(0)
	s.s.CancelWrite(0)
	return nil
}

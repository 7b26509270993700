// Package dosshclient connects to a dossh server and pipes standard input and
// output through a forwarded port.
package dosshclient

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"hop.computer/dossh/keys"
	"hop.computer/dossh/portforwarding"
	"hop.computer/dossh/transport"
)

// Client forwards one port on one peer. It is used once.
type Client struct {
	Dialer transport.Dialer
	Peer   keys.PeerID
	Port   uint16

	// Stdin and Stdout default to os.Stdin and os.Stdout.
	Stdin  io.Reader
	Stdout io.Writer
}

// Run dials the peer, requests the port and relays until the session ends.
// It returns nil only for a clean close.
func (c *Client) Run(ctx context.Context) error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	in, out := c.Stdin, c.Stdout
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		logrus.Warn("C: stdin is a terminal, input is forwarded unbuffered and raw bytes are written to stdout")
	}

	logrus.Infof("C: dialing %s for port %d", c.Peer.Short(), c.Port)
	conn, err := c.Dialer.Dial(ctx, c.Peer)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", c.Peer.Short(), err)
	}
	logrus.Debugf("C: connected to %s at %s", c.Peer.Short(), conn.RemoteAddr())

	stream, err := portforwarding.Request(ctx, conn, c.Port)
	if err != nil {
		return closeOutcome(conn, err)
	}
	return Drive(ctx, conn, stream, in, out)
}

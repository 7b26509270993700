// Package proxy relays bytes between a local TCP socket and a transport
// stream.
package proxy

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Stream is the transport side of a relay.
type Stream interface {
	io.Reader
	io.Writer
	CloseWrite() error
	Close() error
}

// halfCloser is implemented by *net.TCPConn and *net.UnixConn.
type halfCloser interface {
	CloseWrite() error
}

// Stats counts the bytes relayed in each direction.
type Stats struct {
	LocalToRemote int64
	RemoteToLocal int64
}

// Relay copies local to remote and remote to local until both directions
// reach end-of-stream. End-of-stream in one direction is forwarded as a
// half-close and the other direction keeps running.
//
// The first error in either direction, or cancellation of ctx, aborts both
// directions and is returned. Relay owns local and closes it before
// returning. remote is only closed on failure.
func Relay(ctx context.Context, local net.Conn, remote Stream) (Stats, error) {
	var stats Stats
	logrus.Debugf("proxy: starting relay with %v", local.RemoteAddr())

	var once sync.Once
	var cause error
	// fail aborts both directions. Only the first cause is kept, so an error
	// that is a consequence of the abort is never reported.
	fail := func(err error) error {
		once.Do(func() {
			cause = err
			local.Close()
			remote.Close()
		})
		return err
	}
	stop := context.AfterFunc(ctx, func() { fail(ctx.Err()) })
	// guard turns a panic in either direction into a failure of this relay.
	guard := func(fn func() error) func() error {
		return func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fail(errors.Errorf("relay panic: %v", r))
				}
			}()
			return fn()
		}
	}

	var g errgroup.Group
	g.Go(guard(func() error {
		n, err := io.Copy(remote, local)
		stats.LocalToRemote = n
		logrus.Debugf("proxy: wrote %v bytes from %v to stream. Ended with err: %v", n, local.RemoteAddr(), err)
		if err != nil {
			return fail(errors.Wrap(err, "local to remote"))
		}
		if err := remote.CloseWrite(); err != nil {
			return fail(errors.Wrap(err, "closing stream"))
		}
		return nil
	}))
	g.Go(guard(func() error {
		n, err := io.Copy(local, remote)
		stats.RemoteToLocal = n
		logrus.Debugf("proxy: wrote %v bytes from stream to %v. Ended with err: %v", n, local.RemoteAddr(), err)
		if err != nil {
			return fail(errors.Wrap(err, "remote to local"))
		}
		if hc, ok := local.(halfCloser); ok {
			if err := hc.CloseWrite(); err != nil {
				return fail(errors.Wrap(err, "closing local write side"))
			}
		}
		return nil
	}))

	err := g.Wait()
	stop()
	// Waits for a fail still running on the AfterFunc goroutine.
	once.Do(func() {})
	if cause != nil {
		err = cause
	}
	local.Close()
	return stats, err
}

// Package discovery resolves peer identities to network addresses. Resolvers
// are tried in order and the first one that knows the peer wins.
package discovery

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"hop.computer/dossh/common"
	"hop.computer/dossh/keys"
	"hop.computer/dossh/transport"
)

// Resolver maps a PeerID to addresses. A resolver that does not know a peer
// returns no addresses and a nil error.
type Resolver = transport.AddrResolver

// Static always returns the same addresses, whatever the peer. It backs the
// client's explicit address hint.
type Static []string

// Resolve implements Resolver.
func (s Static) Resolve(context.Context, keys.PeerID) ([]string, error) {
	out := make([]string, 0, len(s))
	for _, a := range s {
		out = append(out, Normalize(a))
	}
	return out, nil
}

// Chain tries each resolver in order.
type Chain []Resolver

// Resolve implements Resolver. Errors from one resolver are logged and the
// next one is tried.
func (c Chain) Resolve(ctx context.Context, peer keys.PeerID) ([]string, error) {
	var lastErr error
	for _, r := range c {
		if r == nil {
			continue
		}
		addrs, err := r.Resolve(ctx, peer)
		if err != nil {
			logrus.Debugf("discovery: %T failed for %s: %s", r, peer.Short(), err)
			lastErr = err
			continue
		}
		if len(addrs) > 0 {
			return slices.Compact(addrs), nil
		}
	}
	return nil, lastErr
}

// Normalize adds the default listen port to an address that has none.
func Normalize(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(trimBrackets(address), common.DefaultListenPortString)
}

func trimBrackets(host string) string {
	if len(host) > 1 && host[0] == '[' && host[len(host)-1] == ']' {
		return host[1 : len(host)-1]
	}
	return host
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"hop.computer/dossh/discovery"
	"hop.computer/dossh/dosshclient"
	"hop.computer/dossh/flags"
	"hop.computer/dossh/transport"
)

type clientCmd struct {
	flags flags.ClientFlags
}

var _ = subcommands.Command(&clientCmd{})

func (*clientCmd) Name() string     { return "client" }
func (*clientCmd) Synopsis() string { return "pipe stdin and stdout to a port on a peer" }
func (*clientCmd) Usage() string {
	return `Usage: client [--addr host:port]... [--known-peers path] [--redis url] <node_id> [port]

Connect to <node_id> and relay stdin and stdout to 127.0.0.1:<port> on it
(default 22). Suitable as an ssh ProxyCommand.

`
}

func (c *clientCmd) SetFlags(f *flag.FlagSet) {
	c.flags.Define(f)
}

func (c *clientCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.flags.ParseArgs(f.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n\n%s", err, c.Usage())
		return subcommands.ExitUsageError
	}

	resolvers := discovery.Chain{discovery.Static(c.flags.Addrs)}
	if c.flags.KnownPeers != "" {
		resolvers = append(resolvers, discovery.KnownPeersFile(c.flags.KnownPeers))
	}
	if c.flags.Redis != "" {
		rr, err := discovery.NewRedisRegistry(c.flags.Redis, 0)
		if err != nil {
			logrus.Warnf("C: not using registry: %s", err)
		} else {
			defer rr.Close()
			resolvers = append(resolvers, rr)
		}
	}

	cl := &dosshclient.Client{
		Dialer: transport.NewClient(transport.ClientConfig{Resolver: resolvers}),
		Peer:   c.flags.NodeID,
		Port:   c.flags.Port,
	}
	if err := cl.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"hop.computer/dossh/dialogue"
	"hop.computer/dossh/discovery"
	"hop.computer/dossh/flags"
	"hop.computer/dossh/keys"
)

type generateCmd struct {
	flags flags.GenerateFlags
}

var _ = subcommands.Command(&generateCmd{})

func (*generateCmd) Name() string     { return "generate" }
func (*generateCmd) Synopsis() string { return "generate a new private key (which implies the node id)" }
func (*generateCmd) Usage() string {
	return `Usage: generate [-k keyfile] [-o]

`
}

func (g *generateCmd) SetFlags(f *flag.FlagSet) {
	g.flags.Define(f)
}

func (g *generateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprint(os.Stderr, g.Usage())
		return subcommands.ExitUsageError
	}
	id, err := keys.Generate(g.flags.Key, g.flags.Override)
	if errors.Is(err, keys.ErrKeyExists) {
		logrus.Errorf("The keyfile %s already exists and will not be overwritten.", g.flags.Key)
		return subcommands.ExitFailure
	}
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	fmt.Println(dialogue.Banner(id.PeerID()))
	return subcommands.ExitSuccess
}

type nodeIDCmd struct {
	flags flags.NodeIDFlags
}

var _ = subcommands.Command(&nodeIDCmd{})

func (*nodeIDCmd) Name() string     { return "nodeid" }
func (*nodeIDCmd) Synopsis() string { return "print the node id of a private key" }
func (*nodeIDCmd) Usage() string {
	return `Usage: nodeid [-k keyfile] [-o output] [--ssh] [--addr host:port]...

With --ssh the key is printed as an authorized_keys line. With --addr a
known_peers line is printed instead.

`
}

func (n *nodeIDCmd) SetFlags(f *flag.FlagSet) {
	n.flags.Define(f)
}

func (n *nodeIDCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprint(os.Stderr, n.Usage())
		return subcommands.ExitUsageError
	}
	out, err := nodeIDLine(&n.flags)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	fmt.Println(out)
	if n.flags.Output != "" {
		if err := os.WriteFile(n.flags.Output, []byte(out+"\n"), 0o644); err != nil {
			logrus.Error(err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

func nodeIDLine(f *flags.NodeIDFlags) (string, error) {
	id, err := keys.Load(f.Key)
	if err != nil {
		return "", err
	}
	peer := id.PeerID()
	switch {
	case f.SSH:
		line, err := peer.AuthorizedKey("dossh")
		return strings.TrimSpace(line), err
	case len(f.Addrs) > 0:
		return discovery.Line(f.Addrs, peer), nil
	default:
		return peer.String(), nil
	}
}

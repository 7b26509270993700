// Package main implements the dossh executable: a server that forwards
// identity-addressed connections to local ports, and the matching client.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// aliasCmd registers a command under a second name.
type aliasCmd struct {
	name string
	subcommands.Command
}

func alias(name string, cmd subcommands.Command) subcommands.Command {
	return &aliasCmd{name: name, Command: cmd}
}

func (a *aliasCmd) Name() string     { return a.name }
func (a *aliasCmd) Synopsis() string { return "alias for " + a.Command.Name() }

func setupLogging(verbose, quiet bool) {
	switch {
	case quiet:
		logrus.SetLevel(logrus.WarnLevel)
	case verbose:
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:   tty,
		DisableColors: !tty,
		FullTimestamp: !tty,
	})
	logrus.SetOutput(os.Stderr)
}

// doMain implements the main body of the program. It's a separate function so
// that its deferred functions will run before os.Exit.
func doMain() int {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&serverCmd{}, "")
	subcommands.Register(&clientCmd{}, "")
	gen := &generateCmd{}
	subcommands.Register(gen, "keys")
	subcommands.Register(alias("gen", gen), "keys")
	nodeid := &nodeIDCmd{}
	subcommands.Register(nodeid, "keys")
	subcommands.Register(alias("pub", nodeid), "keys")

	verbose := flag.Bool("v", false, "log debug messages")
	quiet := flag.Bool("q", false, "only log warnings and errors")
	flag.Parse()
	setupLogging(*verbose, *quiet)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"hop.computer/dossh/config"
	"hop.computer/dossh/dialogue"
	"hop.computer/dossh/discovery"
	"hop.computer/dossh/dosshserver"
	"hop.computer/dossh/flags"
	"hop.computer/dossh/keys"
	"hop.computer/dossh/transport"
)

type serverCmd struct {
	flags flags.ServerFlags
}

var _ = subcommands.Command(&serverCmd{})

func (*serverCmd) Name() string     { return "server" }
func (*serverCmd) Synopsis() string { return "forward incoming connections to local ports" }
func (*serverCmd) Usage() string {
	return `Usage: server [-k keyfile] [-n] [-p ports]... [--listen addr] [--config path] [--metrics addr] [--redis url]

Accept connections and forward each one to 127.0.0.1:<port> when <port> is
in the allowed list (default 22).

`
}

func (s *serverCmd) SetFlags(f *flag.FlagSet) {
	s.flags.Define(f)
}

func (s *serverCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 0 {
		fmt.Fprint(os.Stderr, s.Usage())
		return subcommands.ExitUsageError
	}
	c, err := s.flags.LoadServerConfig(f)
	if err != nil {
		logrus.Errorf("error loading config: %s", err)
		return subcommands.ExitUsageError
	}
	if err := runServer(ctx, c); err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func runServer(ctx context.Context, c *config.ServerConfig) error {
	allow, err := c.AllowList()
	if err != nil {
		return err
	}
	id, err := keys.LoadOrCreate(c.Key, !c.NoCreate)
	if err != nil {
		return err
	}
	peer := id.PeerID()
	fmt.Println(dialogue.Banner(peer))

	l, err := transport.Listen(c.ListenAddress, transport.ServerConfig{Identity: id})
	if err != nil {
		return err
	}
	defer l.Close()
	fmt.Println(dialogue.Serving(l.Addr().String(), allow.Ports()))

	reg := prometheus.NewRegistry()
	srv := dosshserver.NewServer(l, dosshserver.Config{
		Identity: peer,
		Allow:    allow,
		Linger:   c.Linger,
		Metrics:  dosshserver.NewMetrics(reg),
	})

	g, ctx := errgroup.WithContext(ctx)
	if c.MetricsAddress != "" {
		hs := &http.Server{
			Addr:    c.MetricsAddress,
			Handler: dosshserver.NewStatusHandler(srv, reg),
		}
		g.Go(func() error {
			logrus.Infof("S: status endpoint at http://%s/status", c.MetricsAddress)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return hs.Close()
		})
	}
	if c.Registry.Redis != "" {
		rr, err := discovery.NewRedisRegistry(c.Registry.Redis, c.Registry.TTL)
		if err != nil {
			return err
		}
		defer rr.Close()
		addrs := c.Advertise
		if len(addrs) == 0 {
			if addrs, err = discovery.AdvertiseAddresses(l.Addr()); err != nil {
				return err
			}
		}
		logrus.Infof("S: advertising %v", addrs)
		g.Go(func() error {
			return rr.Advertise(ctx, peer, addrs)
		})
	}
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	return g.Wait()
}

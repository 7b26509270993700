package flags

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"hop.computer/dossh/common"
	"hop.computer/dossh/config"
)

// ServerFlags holds CLI args for the dossh server.
type ServerFlags struct {
	ConfigPath string

	Key      string
	NoCreate bool
	Ports    []string
	Listen   string
	Metrics  string
	Redis    string
}

// Define registers the server flags on fs.
func (f *ServerFlags) Define(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "path to server config (uses "+common.DefaultServerConfigFile+" when present)")
	stringAlias(fs, &f.Key, common.DefaultKeyFile, "path of the keyfile to use", "k", "key", "i", "f")
	boolAlias(fs, &f.NoCreate, false, "do not generate a keyfile if none is found", "n", "no-create")
	portsUsage := "ports clients may forward to, comma separated, ranges as a-b (default 22)"
	for _, n := range []string{"p", "port"} {
		fs.Func(n, portsUsage, func(s string) error {
			f.Ports = append(f.Ports, s)
			return nil
		})
	}
	fs.StringVar(&f.Listen, "listen", common.DefaultListenAddress, "UDP address to listen on")
	fs.StringVar(&f.Metrics, "metrics", "", "TCP address serving /status and /metrics")
	fs.StringVar(&f.Redis, "redis", "", "redis URL to publish this server's addresses on")
}

// Merge copies the flags that were set on the command line into c.
func (f *ServerFlags) Merge(fs *flag.FlagSet, c *config.ServerConfig) {
	seen := set(fs)
	if anySet(seen, "k", "key", "i", "f") {
		c.Key = f.Key
	}
	if anySet(seen, "n", "no-create") {
		c.NoCreate = f.NoCreate
	}
	if len(f.Ports) > 0 {
		c.Ports = append(config.PortSpecs(nil), f.Ports...)
	}
	if seen["listen"] {
		c.ListenAddress = f.Listen
	}
	if seen["metrics"] {
		c.MetricsAddress = f.Metrics
	}
	if seen["redis"] {
		c.Registry.Redis = f.Redis
	}
}

// LoadServerConfig loads the config named by --config, or the default config
// file when it exists, and applies the flags on top. An explicitly named file
// must exist.
func (f *ServerFlags) LoadServerConfig(fs *flag.FlagSet) (*config.ServerConfig, error) {
	path := f.ConfigPath
	if path == "" {
		if _, err := os.Stat(common.DefaultServerConfigFile); err == nil {
			path = common.DefaultServerConfigFile
		}
	}

	c := config.DefaultServerConfig()
	if path != "" {
		var err error
		c, err = config.LoadServerConfig(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no config file found: %s", err)
		}
		if err != nil {
			return nil, err
		}
	}
	f.Merge(fs, c)
	if _, err := c.AllowList(); err != nil {
		return nil, err
	}
	return c, nil
}

// Package config contains structures for parsing the dossh server
// configuration, and locates per-user dossh files.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"hop.computer/dossh/common"
	"hop.computer/dossh/pkg/thunks"
	"hop.computer/dossh/ports"
)

// ServerConfig represents a parsed server configuration. Every field is
// optional.
type ServerConfig struct {
	// Key is the path of the identity seed file.
	Key string `toml:"key"`

	// NoCreate disables generating Key when it does not exist.
	NoCreate bool `toml:"no_create"`

	// Ports lists the ports clients may forward to, as numbers, comma lists or
	// ranges.
	Ports PortSpecs `toml:"ports"`

	// ListenAddress is the UDP address the transport binds.
	ListenAddress string `toml:"listen"`

	// MetricsAddress is the TCP address of the status endpoint. Empty disables
	// it.
	MetricsAddress string `toml:"metrics"`

	Linger time.Duration `toml:"linger"`

	// Advertise lists the addresses published to the registry. When empty the
	// listen address is published.
	Advertise []string `toml:"advertise"`

	Registry RegistryConfig `toml:"registry"`
}

// RegistryConfig configures publication of the server's addresses.
type RegistryConfig struct {
	Redis string        `toml:"redis"`
	TTL   time.Duration `toml:"ttl"`
}

// PortSpecs holds port list entries. In TOML it may be an integer, a string
// or an array mixing both.
type PortSpecs []string

// UnmarshalTOML implements toml.Unmarshaler.
func (p *PortSpecs) UnmarshalTOML(v interface{}) error {
	var out PortSpecs
	var add func(v interface{}) error
	add = func(v interface{}) error {
		switch v := v.(type) {
		case int64:
			out = append(out, strconv.FormatInt(v, 10))
		case string:
			out = append(out, v)
		case []interface{}:
			for _, e := range v {
				if _, nested := e.([]interface{}); nested {
					return fmt.Errorf("ports: nested arrays are not allowed")
				}
				if err := add(e); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("ports: unexpected value %v of type %T", v, v)
		}
		return nil
	}
	if err := add(v); err != nil {
		return err
	}
	*p = out
	return nil
}

// AllowList parses the port specs. Empty specs give the default list.
func (c *ServerConfig) AllowList() (*ports.AllowList, error) {
	return ports.ParseAllowList(c.Ports...)
}

// DefaultServerConfig returns the configuration used when no file exists.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Key:           common.DefaultKeyFile,
		ListenAddress: common.DefaultListenAddress,
		Linger:        common.DefaultCloseLinger,
		Registry: RegistryConfig{
			TTL: common.DefaultRegistryTTL,
		},
	}
}

// LoadServerConfig reads the TOML file at path over the defaults. Unknown keys
// are an error.
func LoadServerConfig(path string) (*ServerConfig, error) {
	c := DefaultServerConfig()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown setting %q", path, undecoded[0].String())
	}
	if _, err := c.AllowList(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

var userDirectory string
var userDirectoryOnce sync.Once

func locateUserDirectory() string {
	home, err := thunks.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, common.UserConfigDirectory)
}

// UserDirectory returns the path to the dossh directory of the current user.
// It is empty when the home directory is unknown.
func UserDirectory() string {
	userDirectoryOnce.Do(func() {
		userDirectory = locateUserDirectory()
	})
	return userDirectory
}

// KnownPeersPath returns UserDirectory()/known_peers, or "" when there is no
// user directory.
func KnownPeersPath() string {
	return knownPeersPath(UserDirectory())
}

func knownPeersPath(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, common.KnownPeersFile)
}

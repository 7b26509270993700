package common

import "time"

const (
	// UserConfigDirectory is the dirname of the directory holding per-user
	// dossh state, such as the known peers file.
	UserConfigDirectory = ".dossh"

	// KnownPeersFile is the name of the file mapping peer identities to
	// network addresses. It is stored inside the UserConfigDirectory.
	KnownPeersFile = "known_peers"

	// DefaultKeyFile is the name of the seed file used by the server and by
	// generate/nodeid when no path is given.
	DefaultKeyFile = "key.priv"

	// DefaultServerConfigFile is the path of the optional server config file.
	DefaultServerConfigFile = "/etc/dossh/server.toml"

	// DefaultListenPortString is the string version of the default UDP port
	// the server listens on.
	DefaultListenPortString = "7722"

	// DefaultListenAddress is the address the server binds when neither the
	// config nor the flags name one.
	DefaultListenAddress = "0.0.0.0:" + DefaultListenPortString

	// DefaultForwardPort is the port forwarded when the client names none and
	// the port allowed when the server's allow-list is empty.
	DefaultForwardPort uint16 = 22

	// ForwardHost is the only host a server forwards to.
	ForwardHost = "127.0.0.1"

	// ALPN is the application protocol negotiated on every transport
	// connection.
	ALPN = "do-ssh"

	// SeedLen is the size in bytes of a persisted identity seed.
	SeedLen = 32
)

// Transport timing.
const (
	KeepAlivePeriod = 15 * time.Second
	MaxIdleTimeout  = 60 * time.Second

	// DefaultCloseLinger bounds how long a server waits for the client to
	// close first after a relay finished cleanly.
	DefaultCloseLinger = 2 * time.Second

	// DefaultRegistryTTL is the lifetime of a published address record.
	DefaultRegistryTTL = 5 * time.Minute
)

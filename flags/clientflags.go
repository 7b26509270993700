package flags

import (
	"flag"
	"fmt"
	"strconv"

	"hop.computer/dossh/common"
	"hop.computer/dossh/config"
	"hop.computer/dossh/keys"
)

// ClientFlags holds CLI arguments for the dossh client.
type ClientFlags struct {
	// Addrs are address hints tried before any other discovery.
	Addrs      []string
	KnownPeers string
	Redis      string

	NodeID keys.PeerID
	Port   uint16
}

// Define registers the client flags on fs.
func (f *ClientFlags) Define(fs *flag.FlagSet) {
	fs.Func("addr", "address of the peer, may be repeated", func(s string) error {
		f.Addrs = append(f.Addrs, s)
		return nil
	})
	fs.StringVar(&f.KnownPeers, "known-peers", config.KnownPeersPath(), "path of the known peers file")
	fs.StringVar(&f.Redis, "redis", "", "redis URL to look the peer up on")
}

// ParseArgs reads the positional <node_id> [port] arguments left after flag
// parsing.
func (f *ClientFlags) ParseArgs(args []string) error {
	if len(args) < 1 {
		return ErrMissingNodeID
	}
	if len(args) > 2 {
		return ErrExcessArgs
	}
	id, err := keys.ParsePeerID(args[0])
	if err != nil {
		return err
	}
	f.NodeID = id
	f.Port = common.DefaultForwardPort
	if len(args) == 2 {
		p, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil || p == 0 {
			return fmt.Errorf("invalid port %q", args[1])
		}
		f.Port = uint16(p)
	}
	return nil
}

// GenerateFlags holds CLI arguments for key generation.
type GenerateFlags struct {
	Key      string
	Override bool
}

// Define registers the generate flags on fs.
func (f *GenerateFlags) Define(fs *flag.FlagSet) {
	stringAlias(fs, &f.Key, common.DefaultKeyFile, "path to the keyfile to generate", "k", "key", "i", "f")
	boolAlias(fs, &f.Override, false, "overwrite an existing keyfile", "o", "override")
}

// NodeIDFlags holds CLI arguments for printing the node id of a key.
type NodeIDFlags struct {
	Key    string
	Output string
	SSH    bool
	Addrs  []string
}

// Define registers the nodeid flags on fs.
func (f *NodeIDFlags) Define(fs *flag.FlagSet) {
	stringAlias(fs, &f.Key, common.DefaultKeyFile, "path to the private keyfile", "k", "key", "i", "f")
	stringAlias(fs, &f.Output, "", "path to save the node id to", "o", "output")
	fs.BoolVar(&f.SSH, "ssh", false, "print the key as an OpenSSH authorized_keys line")
	fs.Func("addr", "print a known peers line with this address, may be repeated", func(s string) error {
		f.Addrs = append(f.Addrs, s)
		return nil
	})
}

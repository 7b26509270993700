// Package flags provides support for dossh CLI args
package flags

import (
	"errors"
	"flag"
)

// ErrExcessArgs is returned when unparsed arguments remain
var ErrExcessArgs = errors.New("excess arguments provided")

// ErrMissingNodeID is returned when the client is given no peer to connect to
var ErrMissingNodeID = errors.New("missing <node_id>")

// stringAlias registers the same variable under every name.
func stringAlias(fs *flag.FlagSet, p *string, value, usage string, names ...string) {
	for _, n := range names {
		fs.StringVar(p, n, value, usage)
	}
}

func boolAlias(fs *flag.FlagSet, p *bool, value bool, usage string, names ...string) {
	for _, n := range names {
		fs.BoolVar(p, n, value, usage)
	}
}

// set reports which flags of fs were given on the command line.
func set(fs *flag.FlagSet) map[string]bool {
	out := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		out[f.Name] = true
	})
	return out
}

func anySet(seen map[string]bool, names ...string) bool {
	for _, n := range names {
		if seen[n] {
			return true
		}
	}
	return false
}

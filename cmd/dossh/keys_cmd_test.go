package main

import (
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/assert"

	"hop.computer/dossh/flags"
	"hop.computer/dossh/keys"
)

func TestNodeIDLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.priv")
	id, err := keys.Generate(path, false)
	assert.NilError(t, err)

	line, err := nodeIDLine(&flags.NodeIDFlags{Key: path})
	assert.NilError(t, err)
	assert.Equal(t, line, id.PeerID().String())

	line, err = nodeIDLine(&flags.NodeIDFlags{Key: path, SSH: true})
	assert.NilError(t, err)
	assert.Assert(t, strings.HasPrefix(line, "ssh-ed25519 "), line)
	assert.Assert(t, strings.HasSuffix(line, " dossh"), line)

	line, err = nodeIDLine(&flags.NodeIDFlags{Key: path, Addrs: []string{"192.0.2.1:7722"}})
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(line, id.PeerID().String()), line)
	assert.Assert(t, strings.HasPrefix(line, "192.0.2.1:7722"), line)
}

func TestNodeIDLineMissingKey(t *testing.T) {
	_, err := nodeIDLine(&flags.NodeIDFlags{Key: filepath.Join(t.TempDir(), "missing")})
	assert.Assert(t, keys.IsNotFound(err), "got %v", err)
}

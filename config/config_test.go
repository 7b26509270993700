package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/assert"

	"hop.computer/dossh/common"
	"hop.computer/dossh/pkg/thunks"
)

func TestLoadServerConfig(t *testing.T) {
	c, err := LoadServerConfig("testdata/server.toml")
	assert.NilError(t, err)
	expected := &ServerConfig{
		Key:            "/var/lib/dossh/key.priv",
		NoCreate:       true,
		Ports:          PortSpecs{"22", "8000-8002"},
		ListenAddress:  "[::]:7722",
		MetricsAddress: "127.0.0.1:9722",
		Linger:         5 * time.Second,
		Advertise:      []string{"203.0.113.7:7722"},
		Registry: RegistryConfig{
			Redis: "redis://localhost:6379/0",
			TTL:   time.Minute,
		},
	}
	if diff := cmp.Diff(expected, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	allow, err := c.AllowList()
	assert.NilError(t, err)
	assert.DeepEqual(t, allow.Ports(), []uint16{22, 8000, 8001, 8002})
}

func TestLoadServerConfigUnknownKey(t *testing.T) {
	_, err := LoadServerConfig("testdata/unknown.toml")
	assert.ErrorContains(t, err, "forward_host")
}

func TestLoadServerConfigBadPorts(t *testing.T) {
	_, err := LoadServerConfig("testdata/badports.toml")
	assert.Assert(t, err != nil)
	assert.Assert(t, strings.HasPrefix(err.Error(), "testdata/badports.toml"), err.Error())
}

func TestLoadServerConfigMissing(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Assert(t, err != nil)
}

func TestDefaults(t *testing.T) {
	c := DefaultServerConfig()
	assert.Equal(t, c.Key, common.DefaultKeyFile)
	assert.Equal(t, c.ListenAddress, common.DefaultListenAddress)
	allow, err := c.AllowList()
	assert.NilError(t, err)
	assert.DeepEqual(t, allow.Ports(), []uint16{22})
}

func TestUserDirectory(t *testing.T) {
	thunks.SetUpTest("/home/someone")
	defer thunks.TearDownTest()

	dir := locateUserDirectory()
	assert.Equal(t, dir, "/home/someone/.dossh")
	assert.Equal(t, knownPeersPath(dir), "/home/someone/.dossh/known_peers")
	assert.Equal(t, knownPeersPath(""), "")
}

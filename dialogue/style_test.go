package dialogue

import (
	"strings"
	"testing"

	"gotest.tools/assert"

	"hop.computer/dossh/keys"
)

func TestBanner(t *testing.T) {
	id := keys.GenerateIdentity().PeerID()
	b := Banner(id)
	assert.Assert(t, strings.Contains(b, "NodeId:"))
	assert.Assert(t, strings.Contains(b, id.String()))
}

func TestServing(t *testing.T) {
	s := Serving("0.0.0.0:7722", []uint16{22, 8080})
	assert.Assert(t, strings.Contains(s, "0.0.0.0:7722"))
	assert.Assert(t, strings.Contains(s, "22,8080"))
}

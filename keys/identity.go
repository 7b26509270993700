package keys

import (
	"crypto/ed25519"
	"io"

	"github.com/sirupsen/logrus"

	"hop.computer/dossh/common"
	"hop.computer/dossh/pkg/thunks"
)

// Seed is the secret from which an Identity is derived.
type Seed [common.SeedLen]byte

// Identity is an Ed25519 key pair. It is built once at startup and never
// mutated.
type Identity struct {
	seed    Seed
	private ed25519.PrivateKey
	peer    PeerID
}

// NewIdentity derives the key pair for seed.
func NewIdentity(seed Seed) *Identity {
	private := ed25519.NewKeyFromSeed(seed[:])
	out := &Identity{
		seed:    seed,
		private: private,
	}
	copy(out.peer[:], private.Public().(ed25519.PublicKey))
	return out
}

// GenerateSeed returns a new seed read from the system's secure random source.
func GenerateSeed() Seed {
	var s Seed
	if _, err := io.ReadFull(thunks.RandReader, s[:]); err != nil {
		logrus.Panicf("unable to read random seed: %s", err)
	}
	return s
}

// GenerateIdentity returns an identity for a fresh random seed. Clients use it
// for their ephemeral per-run identity.
func GenerateIdentity() *Identity {
	return NewIdentity(GenerateSeed())
}

// PeerID returns the public identity advertised on the transport.
func (id *Identity) PeerID() PeerID {
	return id.peer
}

// Seed returns a copy of the secret seed.
func (id *Identity) Seed() Seed {
	return id.seed
}

// PrivateKey returns the Ed25519 private key.
func (id *Identity) PrivateKey() ed25519.PrivateKey {
	return id.private
}

// PublicKey returns the Ed25519 public key.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.private.Public().(ed25519.PublicKey)
}

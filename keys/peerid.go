package keys

import (
	"crypto/ed25519"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// PeerID is the Ed25519 public key of an endpoint. It is self-certifying: a
// transport connection only completes if the remote side proves ownership of
// the matching private key.
type PeerID [ed25519.PublicKeySize]byte

var peerEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// String encodes p as unpadded lowercase base32.
func (p PeerID) String() string {
	return strings.ToLower(peerEncoding.EncodeToString(p[:]))
}

// Short returns a prefix of String, for log lines.
func (p PeerID) Short() string {
	return p.String()[:10]
}

// PublicKey returns p as an ed25519.PublicKey.
func (p PeerID) PublicKey() ed25519.PublicKey {
	out := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(out, p[:])
	return out
}

// IsZero reports whether p is the zero value.
func (p PeerID) IsZero() bool {
	return p == PeerID{}
}

// AuthorizedKey renders p as an OpenSSH authorized_keys line with the given
// comment.
func (p PeerID) AuthorizedKey(comment string) (string, error) {
	pk, err := ssh.NewPublicKey(p.PublicKey())
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pk)))
	if comment != "" {
		line += " " + comment
	}
	return line, nil
}

// ParsePeerID decodes a PeerID from its base32 form. A 64 character hex string
// is also accepted.
func ParsePeerID(s string) (PeerID, error) {
	var out PeerID
	s = strings.TrimSpace(s)
	var b []byte
	var err error
	if len(s) == 2*ed25519.PublicKeySize {
		b, err = hex.DecodeString(s)
	} else {
		b, err = peerEncoding.DecodeString(strings.ToUpper(s))
	}
	if err != nil {
		return out, fmt.Errorf("%w %q: %s", ErrInvalidPeerID, s, err)
	}
	if len(b) != ed25519.PublicKeySize {
		return out, fmt.Errorf("%w %q: got %d bytes, expected %d", ErrInvalidPeerID, s, len(b), ed25519.PublicKeySize)
	}
	copy(out[:], b)
	return out, nil
}

// PeerIDFromPublicKey converts an Ed25519 public key into a PeerID.
func PeerIDFromPublicKey(pk ed25519.PublicKey) (PeerID, error) {
	var out PeerID
	if len(pk) != ed25519.PublicKeySize {
		return out, fmt.Errorf("%w: public key is %d bytes", ErrInvalidPeerID, len(pk))
	}
	copy(out[:], pk)
	return out, nil
}

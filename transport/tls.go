package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"hop.computer/dossh/common"
	"hop.computer/dossh/keys"
	"hop.computer/dossh/pkg/thunks"
)

const certLifetime = 10 * 365 * 24 * time.Hour

// certificate returns a self-signed TLS certificate for id. Peers never
// validate it against a CA: the certificate only carries the identity key,
// and the TLS handshake proves possession of the private half.
func certificate(id *keys.Identity) (tls.Certificate, error) {
	serial, err := rand.Int(thunks.RandReader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return tls.Certificate{}, err
	}
	now := thunks.TimeNow()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: id.PeerID().String()},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(thunks.RandReader, tmpl, tmpl, id.PublicKey(), id.PrivateKey())
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  id.PrivateKey(),
	}, nil
}

// peerFromCertificates extracts the identity from the leaf of a raw
// certificate chain.
func peerFromCertificates(raw [][]byte) (keys.PeerID, error) {
	if len(raw) == 0 {
		return keys.PeerID{}, fmt.Errorf("%w: none presented", ErrBadCertificate)
	}
	cert, err := x509.ParseCertificate(raw[0])
	if err != nil {
		return keys.PeerID{}, fmt.Errorf("%w: %s", ErrBadCertificate, err)
	}
	pk, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return keys.PeerID{}, fmt.Errorf("%w: key is %T, not ed25519", ErrBadCertificate, cert.PublicKey)
	}
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return keys.PeerID{}, fmt.Errorf("%w: not self-signed: %s", ErrBadCertificate, err)
	}
	return keys.PeerIDFromPublicKey(pk)
}

func serverTLSConfig(id *keys.Identity) (*tls.Config, error) {
	cert, err := certificate(id)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{common.ALPN},
		ClientAuth:   tls.RequireAnyClientCert,
		VerifyPeerCertificate: func(raw [][]byte, _ [][]*x509.Certificate) error {
			_, err := peerFromCertificates(raw)
			return err
		},
	}, nil
}

// clientTLSConfig pins the server certificate to want.
func clientTLSConfig(id *keys.Identity, want keys.PeerID) (*tls.Config, error) {
	cert, err := certificate(id)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		Certificates:       []tls.Certificate{cert},
		NextProtos:         []string{common.ALPN},
		ServerName:         want.Short(),
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(raw [][]byte, _ [][]*x509.Certificate) error {
			got, err := peerFromCertificates(raw)
			if err != nil {
				return err
			}
			if got != want {
				return fmt.Errorf("%w: dialed %s, got %s", ErrPeerMismatch, want, got)
			}
			return nil
		},
	}, nil
}

package discovery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"hop.computer/dossh/keys"
)

// KnownPeer is one line of a known_peers file.
type KnownPeer struct {
	Addresses []string
	Peer      keys.PeerID
}

// KnownPeers is a parsed known_peers file. Each line holds a comma separated
// address list followed by a PeerID. Blank lines and lines starting with '#'
// are ignored.
type KnownPeers []KnownPeer

// ParseKnownPeers parses known_peers content.
func ParseKnownPeers(r io.Reader) (KnownPeers, error) {
	scanner := bufio.NewScanner(r)
	var out KnownPeers

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		kp, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("known_peers: %d: %w", lineNum, err)
		}
		out = append(out, kp)
	}
	return out, scanner.Err()
}

// ParseKnownPeersFile reads path. A missing file is an empty list.
func ParseKnownPeersFile(path string) (KnownPeers, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseKnownPeers(f)
}

func nextWord(line []byte) (string, []byte) {
	i := bytes.IndexAny(line, "\t ")
	if i == -1 {
		return string(line), nil
	}
	return string(line[:i]), bytes.TrimSpace(line[i:])
}

func parseLine(line []byte) (KnownPeer, error) {
	addrList, rest := nextWord(line)
	if len(rest) == 0 {
		return KnownPeer{}, errors.New("missing peer id")
	}
	idString, _ := nextWord(rest)
	peer, err := keys.ParsePeerID(idString)
	if err != nil {
		return KnownPeer{}, err
	}
	var addrs []string
	for _, a := range strings.Split(addrList, ",") {
		if a == "" {
			continue
		}
		addrs = append(addrs, Normalize(a))
	}
	if len(addrs) == 0 {
		return KnownPeer{}, errors.New("missing address")
	}
	return KnownPeer{Addresses: addrs, Peer: peer}, nil
}

// Resolve implements Resolver. Addresses from every matching line are
// returned in file order.
func (kp KnownPeers) Resolve(_ context.Context, peer keys.PeerID) ([]string, error) {
	var out []string
	for _, p := range kp {
		if p.Peer == peer {
			out = append(out, p.Addresses...)
		}
	}
	return out, nil
}

// KnownPeersFile re-reads a known_peers file on every lookup, so edits take
// effect without a restart.
type KnownPeersFile string

// Resolve implements Resolver.
func (path KnownPeersFile) Resolve(ctx context.Context, peer keys.PeerID) ([]string, error) {
	kp, err := ParseKnownPeersFile(string(path))
	if err != nil {
		return nil, err
	}
	return kp.Resolve(ctx, peer)
}

// Line returns a line to append to a known_peers file.
func Line(addresses []string, peer keys.PeerID) string {
	var normalized []string
	for _, a := range addresses {
		normalized = append(normalized, Normalize(a))
	}
	return strings.Join(normalized, ",") + " " + peer.String()
}

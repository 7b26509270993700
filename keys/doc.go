// Package keys holds the long-term identity of a dossh endpoint. An identity is
// an Ed25519 key pair derived from a 32-byte seed, and the seed is the only
// secret ever written to disk, as raw bytes with no framing.
//
// The public half of the identity is the PeerID, which is how peers address
// each other. PeerIDs are printed as unpadded lowercase base32.
package keys

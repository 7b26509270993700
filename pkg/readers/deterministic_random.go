// Package readers contains io.Readers for tests.
package readers

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"io"
)

var iv [aes.BlockSize]byte

type ctrReader struct {
	stream cipher.Stream
}

// Read fills p with the next bytes of the key stream. It cannot fail.
func (c *ctrReader) Read(p []byte) (int, error) {
	clear(p)
	c.stream.XORKeyStream(p, p)
	return len(p), nil
}

// DeterministicRandomReader returns a reader producing the AES-CTR key stream
// for a key derived from seed. Equal seeds give equal byte sequences however
// the reads are split.
func DeterministicRandomReader(seed uint64) io.Reader {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	return &ctrReader{stream: cipher.NewCTR(block, iv[:])}
}

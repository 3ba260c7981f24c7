package hashcap

import (
	"hash"

	"golang.org/x/crypto/blake2b"
)

// blake2bHash is the default hash capability, wrapping
// golang.org/x/crypto/blake2b. size must be one of the sizes blake2b
// supports as a keyless digest (1..64 bytes).
type blake2bHash struct {
	size int
	zero []byte
}

// NewBlake2b returns a Hash capability backed by BLAKE2b truncated (via
// its native variable output length) to size bytes.
func NewBlake2b(size int) (Hash, error) {
	// validate the size is usable by constructing one streaming context
	h, err := blake2b.New(size, nil)
	if err != nil {
		return nil, err
	}
	_ = h
	return &blake2bHash{size: size, zero: make([]byte, size)}, nil
}

func (b *blake2bHash) Size() int    { return b.size }
func (b *blake2bHash) Zero() []byte { return b.zero }

func (b *blake2bHash) Sum(data []byte) []byte {
	h, err := blake2b.New(b.size, nil)
	if err != nil {
		// size was already validated in NewBlake2b
		panic(err)
	}
	h.Write(data) //nolint:errcheck
	return h.Sum(nil)
}

func (b *blake2bHash) New() hash.Hash {
	h, err := blake2b.New(b.size, nil)
	if err != nil {
		panic(err)
	}
	return h
}

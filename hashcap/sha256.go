package hashcap

import (
	"crypto/sha256"
	"hash"
)

// sha256Hash truncates the standard library's SHA-256 to a configured
// size (e.g. N=160, SHA-256 truncated to 20 bytes). crypto/sha256 is
// used directly rather than an ecosystem wrapper: no third-party
// package supersedes the standard library's own FIPS-validated
// implementation for a fixed, well-known hash function like SHA-256.
type sha256Hash struct {
	size int
	zero []byte
}

// NewSHA256 returns a Hash capability backed by SHA-256, truncated to
// size bytes (size must be <= sha256.Size).
func NewSHA256(size int) (Hash, error) {
	if size <= 0 || size > sha256.Size {
		return nil, errSize(size)
	}
	return &sha256Hash{size: size, zero: make([]byte, size)}, nil
}

func (s *sha256Hash) Size() int    { return s.size }
func (s *sha256Hash) Zero() []byte { return s.zero }

func (s *sha256Hash) Sum(data []byte) []byte {
	full := sha256.Sum256(data)
	return full[:s.size]
}

func (s *sha256Hash) New() hash.Hash {
	return &truncatingHash{inner: sha256.New(), size: s.size}
}

type errSize int

func (e errSize) Error() string {
	return "hashcap: invalid truncated sha256 size"
}

// truncatingHash wraps a hash.Hash and truncates its Sum output,
// satisfying the hash.Hash interface for streaming use.
type truncatingHash struct {
	inner hash.Hash
	size  int
}

func (t *truncatingHash) Write(p []byte) (int, error) { return t.inner.Write(p) }
func (t *truncatingHash) Sum(b []byte) []byte {
	full := t.inner.Sum(nil)
	return append(b, full[:t.size]...)
}
func (t *truncatingHash) Reset()         { t.inner.Reset() }
func (t *truncatingHash) Size() int      { return t.size }
func (t *truncatingHash) BlockSize() int { return t.inner.BlockSize() }

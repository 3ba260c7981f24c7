// Package hashcap defines the hash capability of §6: a fixed digest
// size, an all-zero sentinel, a stateless digest function, and a
// streaming context. The core trie and store packages depend only on
// this interface, never on a concrete hash function.
package hashcap

import "hash"

// Hash is the capability a tree is configured with. Implementations
// must be safe for concurrent use by independent New() contexts, but
// the stateless Sum method and Zero value are themselves immutable.
type Hash interface {
	// Size returns H, the digest size in bytes.
	Size() int
	// Zero returns the all-zero sentinel digest, denoting the empty tree.
	Zero() []byte
	// Sum returns the digest of data.
	Sum(data []byte) []byte
	// New returns a fresh streaming hash.Hash context.
	New() hash.Hash
}

package node

import "github.com/flowdb/urkel/hashcap"

// LeafDigest computes H(0x00 || key || H(value)), the digest of a leaf
// holding (key, value).
func LeafDigest(h hashcap.Hash, key, value []byte) []byte {
	valueDigest := h.Sum(value)
	buf := make([]byte, 0, 1+len(key)+len(valueDigest))
	buf = append(buf, 0x00)
	buf = append(buf, key...)
	buf = append(buf, valueDigest...)
	return h.Sum(buf)
}

// LeafDigestFromValueDigest computes the leaf digest given an
// already-hashed value, used by the proof verifier's COLLISION case
// where only H(other_value) is transmitted.
func LeafDigestFromValueDigest(h hashcap.Hash, key, valueDigest []byte) []byte {
	buf := make([]byte, 0, 1+len(key)+len(valueDigest))
	buf = append(buf, 0x00)
	buf = append(buf, key...)
	buf = append(buf, valueDigest...)
	return h.Sum(buf)
}

// InternalDigest computes H(0x01 || left || right), the digest of an
// internal node with the given child digests.
func InternalDigest(h hashcap.Hash, left, right []byte) []byte {
	buf := make([]byte, 0, 1+len(left)+len(right))
	buf = append(buf, 0x01)
	buf = append(buf, left...)
	buf = append(buf, right...)
	return h.Sum(buf)
}

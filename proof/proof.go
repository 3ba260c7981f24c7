// Package proof implements the inclusion/exclusion proof codec and
// verifier of §4.3: EXISTS, DEAD_END and COLLISION proofs, encoded
// shallowest-sibling-first with a zero-sibling bitmap, and verified by
// folding siblings deepest-first.
package proof

import (
	"encoding/binary"

	"github.com/flowdb/urkel/bitutil"
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/urkelerr"
)

// Type tags which of the three proof shapes a Proof is.
type Type uint8

const (
	// Exists proves a key is present, carrying its value.
	Exists Type = 0
	// DeadEnd proves a key is absent because descent hit NIL.
	DeadEnd Type = 1
	// Collision proves a key is absent because descent hit a leaf for
	// a different key.
	Collision Type = 2
)

// Proof is a decoded inclusion/exclusion proof for one key.
type Proof struct {
	Type Type

	// Siblings holds one digest per descent step, ordered shallowest
	// (index 0, nearest the root) to deepest (last index, nearest the
	// terminating leaf/NIL).
	Siblings [][]byte

	// Value is populated for Type == Exists.
	Value []byte

	// OtherKey and OtherValueDigest are populated for Type == Collision.
	OtherKey         []byte
	OtherValueDigest []byte
}

const maxSiblingCount = 1<<14 - 1

// Encode serializes p per the §4.3 wire format.
func Encode(h hashcap.Hash, p *Proof) ([]byte, error) {
	count := len(p.Siblings)
	if count > maxSiblingCount {
		return nil, urkelerr.Assertion("proof sibling count overflows 14 bits")
	}

	header := uint16(p.Type)<<14 | uint16(count)
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, header)

	bitmapLen := (count + 7) / 8
	bitmap := make([]byte, bitmapLen)

	zero := h.Zero()
	var siblingBytes []byte
	for i, sib := range p.Siblings {
		if bitutil.Equal(sib, zero) {
			bitmap[i/8] |= 1 << uint(7-i%8)
			continue
		}
		siblingBytes = append(siblingBytes, sib...)
	}

	buf = append(buf, bitmap...)
	buf = append(buf, siblingBytes...)

	switch p.Type {
	case Exists:
		lenBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBuf, uint16(len(p.Value)))
		buf = append(buf, lenBuf...)
		buf = append(buf, p.Value...)
	case DeadEnd:
		// empty payload
	case Collision:
		buf = append(buf, p.OtherKey...)
		buf = append(buf, p.OtherValueDigest...)
	default:
		return nil, urkelerr.Assertion("unknown proof type")
	}

	return buf, nil
}

// Decode parses a §4.3-encoded proof. keyBytes is N/8, the key width.
func Decode(h hashcap.Hash, buf []byte, keyBytes int) (*Proof, error) {
	if len(buf) < 2 {
		return nil, urkelerr.Encoding(0, "short buffer for proof header")
	}
	header := binary.BigEndian.Uint16(buf)
	typ := Type(header >> 14)
	count := int(header & 0x3FFF)
	off := 2

	bitmapLen := (count + 7) / 8
	if len(buf) < off+bitmapLen {
		return nil, urkelerr.Encoding(int64(off), "short buffer for proof bitmap")
	}
	bitmap := buf[off : off+bitmapLen]
	off += bitmapLen

	hashSize := h.Size()
	zero := h.Zero()
	siblings := make([][]byte, count)
	for i := 0; i < count; i++ {
		if bitmap[i/8]&(1<<uint(7-i%8)) != 0 {
			siblings[i] = zero
			continue
		}
		if len(buf) < off+hashSize {
			return nil, urkelerr.Encoding(int64(off), "short buffer for proof sibling")
		}
		siblings[i] = append([]byte(nil), buf[off:off+hashSize]...)
		off += hashSize
	}

	p := &Proof{Type: typ, Siblings: siblings}

	switch typ {
	case Exists:
		if len(buf) < off+2 {
			return nil, urkelerr.Encoding(int64(off), "short buffer for proof value length")
		}
		vlen := int(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
		if len(buf) < off+vlen {
			return nil, urkelerr.Encoding(int64(off), "short buffer for proof value")
		}
		p.Value = append([]byte(nil), buf[off:off+vlen]...)
	case DeadEnd:
		// no payload
	case Collision:
		if len(buf) < off+keyBytes+hashSize {
			return nil, urkelerr.Encoding(int64(off), "short buffer for collision payload")
		}
		p.OtherKey = append([]byte(nil), buf[off:off+keyBytes]...)
		off += keyBytes
		p.OtherValueDigest = append([]byte(nil), buf[off:off+hashSize]...)
	default:
		return nil, urkelerr.Encoding(int64(off-2), "unknown proof type tag")
	}

	return p, nil
}

// Verify checks p against root for key, per §4.3's fold. It returns a
// ProofError, never a Go error, and the value for present keys (OK,
// Exists) or nil for absent keys (OK, DeadEnd/Collision).
func Verify(h hashcap.Hash, root, key []byte, p *Proof) (urkelerr.ProofError, []byte) {
	var leaf []byte

	switch p.Type {
	case Exists:
		leaf = node.LeafDigest(h, key, p.Value)
	case DeadEnd:
		leaf = h.Zero()
	case Collision:
		if bitutil.Equal(p.OtherKey, key) {
			return urkelerr.SameKey, nil
		}
		leaf = node.LeafDigestFromValueDigest(h, p.OtherKey, p.OtherValueDigest)
	default:
		return urkelerr.Unknown, nil
	}

	next := leaf
	for i := len(p.Siblings) - 1; i >= 0; i-- {
		sib := p.Siblings[i]
		depth := i
		if bitutil.Bit(key, depth) == 1 {
			next = node.InternalDigest(h, sib, next)
		} else {
			next = node.InternalDigest(h, next, sib)
		}
	}

	if !bitutil.Equal(next, root) {
		return urkelerr.HashMismatch, nil
	}

	if p.Type == Exists {
		return urkelerr.OK, p.Value
	}
	return urkelerr.OK, nil
}

package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdb/urkel/bitutil"
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/urkelerr"
)

func mustHash(t *testing.T) hashcap.Hash {
	t.Helper()
	h, err := hashcap.NewSHA256(20)
	require.NoError(t, err)
	return h
}

// buildTwoLeafTree builds Internal(Leaf(k1,v1), Leaf(k2,v2)) for two keys
// that differ at bit 0, mirroring scenario 2 of spec.md §8.
func buildTwoLeafTree(t *testing.T, h hashcap.Hash) (root []byte, k1, v1, k2, v2 []byte) {
	t.Helper()
	k1 = make([]byte, 20)
	k1[19] = 0x01
	v1 = []byte("a")

	k2 = make([]byte, 20)
	k2[0] = 0x80
	v2 = []byte("b")

	l1 := node.NewLeaf(h, k1, v1)
	l2 := node.NewLeaf(h, k2, v2)
	root = node.InternalDigest(h, l1.Hash(h), l2.Hash(h))
	return root, k1, v1, k2, v2
}

func TestProveVerifyExists(t *testing.T) {
	h := mustHash(t)
	root, k1, v1, k2, _ := buildTwoLeafTree(t, h)

	// k1 has bit 0 == 0, so it is the left child; its single sibling is
	// the digest of the leaf at k2.
	l2 := node.NewLeaf(h, k2, []byte("b"))
	p := &Proof{Type: Exists, Value: v1, Siblings: [][]byte{l2.Hash(h)}}

	code, value := Verify(h, root, k1, p)
	require.Equal(t, urkelerr.OK, code)
	assert.Equal(t, "a", string(value))
}

func TestProveVerifyDeadEnd(t *testing.T) {
	h := mustHash(t)

	// the empty tree: any key descends straight to NIL at depth 0.
	emptyRoot := h.Zero()
	missing := make([]byte, 20)
	missing[0] = 0x40

	p := &Proof{Type: DeadEnd, Siblings: nil}
	code, value := Verify(h, emptyRoot, missing, p)
	require.Equal(t, urkelerr.OK, code)
	assert.Nil(t, value)
}

func TestProveVerifyCollision(t *testing.T) {
	h := mustHash(t)
	_, _, _, k2, v2 := buildTwoLeafTree(t, h)

	l2 := node.NewLeaf(h, k2, v2)

	pSame := &Proof{
		Type:             Collision,
		OtherKey:         k2,
		OtherValueDigest: h.Sum(v2),
	}
	code, _ := Verify(h, l2.Hash(h), k2, pSame)
	assert.Equal(t, urkelerr.SameKey, code)
}

func TestVerifyNonForgery(t *testing.T) {
	h := mustHash(t)
	root, k1, v1, k2, _ := buildTwoLeafTree(t, h)

	l2 := node.NewLeaf(h, k2, []byte("b"))
	p := &Proof{Type: Exists, Value: v1, Siblings: [][]byte{l2.Hash(h)}}

	code, _ := Verify(h, root, k1, p)
	require.Equal(t, urkelerr.OK, code, "expected baseline OK")

	tampered := &Proof{Type: Exists, Value: []byte("tampered"), Siblings: [][]byte{l2.Hash(h)}}
	code, _ = Verify(h, root, k1, tampered)
	assert.Equal(t, urkelerr.HashMismatch, code, "expected HASH_MISMATCH for tampered value")

	badSibling := make([]byte, h.Size())
	copy(badSibling, l2.Hash(h))
	badSibling[0] ^= 0xFF
	tamperedSibling := &Proof{Type: Exists, Value: v1, Siblings: [][]byte{badSibling}}
	code, _ = Verify(h, root, k1, tamperedSibling)
	assert.Equal(t, urkelerr.HashMismatch, code, "expected HASH_MISMATCH for tampered sibling")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := mustHash(t)
	zero := h.Zero()
	nonZero := h.Sum([]byte("sibling"))

	p := &Proof{
		Type:     Exists,
		Value:    []byte("value"),
		Siblings: [][]byte{zero, nonZero, zero},
	}

	enc, err := Encode(h, p)
	require.NoError(t, err)

	dec, err := Decode(h, enc, 20)
	require.NoError(t, err)

	require.Equal(t, p.Type, dec.Type)
	require.Equal(t, string(p.Value), string(dec.Value))
	require.Len(t, dec.Siblings, len(p.Siblings))
	for i := range p.Siblings {
		assert.True(t, bitutil.Equal(dec.Siblings[i], p.Siblings[i]), "sibling %d mismatch", i)
	}
}

func TestEncodeDecodeBatch(t *testing.T) {
	h := mustHash(t)
	p1 := &Proof{Type: DeadEnd}
	p2 := &Proof{Type: Exists, Value: []byte("x"), Siblings: [][]byte{h.Zero()}}

	enc, err := EncodeBatch(h, []*Proof{p1, p2})
	require.NoError(t, err)

	dec, err := DecodeBatch(h, enc, 20)
	require.NoError(t, err)

	require.Len(t, dec, 2)
	assert.Equal(t, DeadEnd, dec[0].Type)
	assert.Equal(t, Exists, dec[1].Type)
}

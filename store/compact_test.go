package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flowdb/urkel/fscap"
	"github.com/flowdb/urkel/metrics"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/pointer"
)

func TestCompactPreservesTreeAndValues(t *testing.T) {
	fs := fscap.NewMemFS()
	h := testHash(t)
	keyBytes := 20

	src, err := Open(fs, Config{Prefix: "src"}, h, keyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	k1 := make([]byte, keyBytes)
	k1[19] = 0x01
	v1 := []byte("alpha")
	k2 := make([]byte, keyBytes)
	k2[0] = 0x80
	v2 := []byte("beta")

	vp1, err := src.WriteValue(v1)
	require.NoError(t, err)
	leafRec1 := node.EncodeLeaf(vp1, k1)
	lp1, err := src.WriteNode(pointer.TagLeaf, leafRec1)
	require.NoError(t, err)

	vp2, err := src.WriteValue(v2)
	require.NoError(t, err)
	leafRec2 := node.EncodeLeaf(vp2, k2)
	lp2, err := src.WriteNode(pointer.TagLeaf, leafRec2)
	require.NoError(t, err)

	l1 := node.NewLeaf(h, k1, v1)
	l2 := node.NewLeaf(h, k2, v2)
	rootDigest := node.InternalDigest(h, l1.Hash(h), l2.Hash(h))

	internalRec, err := node.EncodeInternal(lp1, l1.Hash(h), lp2, l2.Hash(h))
	require.NoError(t, err)
	rootPtr, err := src.WriteNode(pointer.TagInternal, internalRec)
	require.NoError(t, err)
	require.NoError(t, src.AppendMetaRoot(rootPtr, rootDigest))

	dst, err := Open(fs, Config{Prefix: "dst"}, h, keyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	newRootPtr, newRootDigest, err := Compact(h, keyBytes, src, dst, rootPtr, rootDigest)
	require.NoError(t, err)
	require.Equal(t, string(rootDigest), string(newRootDigest), "compaction changed the root digest")

	rawInternal, err := dst.ReadNode(newRootPtr)
	require.NoError(t, err)
	newLP, lhash, newRP, rhash, err := node.DecodeInternal(rawInternal, h.Size())
	require.NoError(t, err)
	require.Equal(t, string(l1.Hash(h)), string(lhash), "compacted left child digest changed")
	require.Equal(t, string(l2.Hash(h)), string(rhash), "compacted right child digest changed")

	rawLeaf, err := dst.ReadNode(newLP)
	require.NoError(t, err)
	newVP, key, err := node.DecodeLeaf(rawLeaf, keyBytes)
	require.NoError(t, err)
	require.Equal(t, string(k1), string(key), "compacted leaf1 key mismatch")

	gotValue, err := dst.ReadValue(newVP)
	require.NoError(t, err)
	require.Equal(t, string(v1), string(gotValue), "compacted value1 mismatch")

	_ = newRP
}

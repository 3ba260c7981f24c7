package trie

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdb/urkel/fscap"
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/metrics"
	"github.com/flowdb/urkel/proof"
	"github.com/flowdb/urkel/rootcache"
	"github.com/flowdb/urkel/store"
	"github.com/flowdb/urkel/urkelerr"
)

const testBits = 160
const testKeyBytes = testBits / 8

func newTestTree(t *testing.T, prefix string) *Tree {
	t.Helper()
	mfs := fscap.NewMemFS()
	h, err := hashcap.NewSHA256(testKeyBytes)
	require.NoError(t, err)

	st, err := store.Open(mfs, store.Config{Prefix: prefix}, h, testKeyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	cache, err := rootcache.New(256)
	require.NoError(t, err)

	tree, err := Open(st, cache, h, Config{Bits: testBits, CacheDepth: 4, InitCacheSize: 1}, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)
	return tree
}

func keyAt(bitPositions ...int) []byte {
	k := make([]byte, testKeyBytes)
	for _, pos := range bitPositions {
		k[pos/8] |= 1 << uint(7-pos%8)
	}
	return k
}

func TestScenario1BasicGet(t *testing.T) {
	tree := newTestTree(t, "db")
	k1 := keyAt(159) // 0x00...01
	missing := keyAt(158)

	tx, err := tree.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Insert(k1, []byte("a")))
	_, err = tx.Commit()
	require.NoError(t, err)

	snap := tree.Current()
	got, err := snap.Get(k1)
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	got, err = snap.Get(missing)
	require.NoError(t, err)
	assert.Nil(t, got, "expected nil for missing key")
}

func TestScenario2TwoLeavesDifferAtBitZero(t *testing.T) {
	tree := newTestTree(t, "db")
	k1 := keyAt(159)
	k2 := keyAt(0)

	tx, err := tree.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Insert(k1, []byte("a")))
	require.NoError(t, tx.Insert(k2, []byte("b")))
	_, err = tx.Commit()
	require.NoError(t, err)

	snap := tree.Current()
	v1, err := snap.Get(k1)
	require.NoError(t, err)
	v2, err := snap.Get(k2)
	require.NoError(t, err)
	assert.Equal(t, "a", string(v1))
	assert.Equal(t, "b", string(v2))
}

func TestScenario3DeepBranch(t *testing.T) {
	tree := newTestTree(t, "db")
	k1 := keyAt(159)      // 0x00...01
	k2 := keyAt(158, 159) // 0x00...03: agrees with k1 through bit 157, differs at bit 158

	tx, err := tree.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Insert(k1, []byte("a")))
	require.NoError(t, tx.Insert(k2, []byte("b")))
	_, err = tx.Commit()
	require.NoError(t, err)

	snap := tree.Current()
	v1, err := snap.Get(k1)
	require.NoError(t, err)
	v2, err := snap.Get(k2)
	require.NoError(t, err)
	assert.Equal(t, "a", string(v1))
	assert.Equal(t, "b", string(v2))

	p, err := snap.Prove(k1)
	require.NoError(t, err)
	require.Equal(t, proof.Exists, p.Type)

	code, value := proof.Verify(tree.h, snap.RootHash(), k1, p)
	require.Equal(t, urkelerr.OK, code, "proof did not verify")
	assert.Equal(t, "a", string(value))
}

func TestIdempotentInsert(t *testing.T) {
	k := keyAt(3, 50, 120)
	v := []byte("value")

	treeA := newTestTree(t, "a")
	txA, err := treeA.Begin()
	require.NoError(t, err)
	require.NoError(t, txA.Insert(k, v))
	rootOnce, err := txA.Commit()
	require.NoError(t, err)

	treeB := newTestTree(t, "b")
	txB, err := treeB.Begin()
	require.NoError(t, err)
	require.NoError(t, txB.Insert(k, v), "insert first")
	require.NoError(t, txB.Insert(k, v), "insert second (idempotent)")
	rootTwice, err := txB.Commit()
	require.NoError(t, err)

	assert.Equal(t, string(rootOnce), string(rootTwice), "idempotent insert produced different roots")
}

func TestRemoveOfInsertIsIdentity(t *testing.T) {
	tree := newTestTree(t, "db")
	emptyRoot := tree.RootHash()

	k := keyAt(42, 99)
	tx, err := tree.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Insert(k, []byte("x")))
	require.NoError(t, tx.Remove(k))
	root, err := tx.Commit()
	require.NoError(t, err)

	assert.Equal(t, string(emptyRoot), string(root), "remove-of-insert did not return to the empty root")
}

func randomKeyValues(seed int64, n int) [][2][]byte {
	r := rand.New(rand.NewSource(seed))
	seen := make(map[string]bool)
	pairs := make([][2][]byte, 0, n)
	for len(pairs) < n {
		k := make([]byte, testKeyBytes)
		r.Read(k) //nolint:errcheck
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		v := []byte(fmt.Sprintf("value-%d", len(pairs)))
		pairs = append(pairs, [2][]byte{k, v})
	}
	return pairs
}

func TestOrderIndependence(t *testing.T) {
	pairs := randomKeyValues(1, 100)

	treeA := newTestTree(t, "a")
	txA, err := treeA.Begin()
	require.NoError(t, err)
	for _, kv := range pairs {
		require.NoError(t, txA.Insert(kv[0], kv[1]), "insert forward")
	}
	rootA, err := txA.Commit()
	require.NoError(t, err)

	reversed := make([][2][]byte, len(pairs))
	for i, kv := range pairs {
		reversed[len(pairs)-1-i] = kv
	}

	treeB := newTestTree(t, "b")
	txB, err := treeB.Begin()
	require.NoError(t, err)
	for _, kv := range reversed {
		require.NoError(t, txB.Insert(kv[0], kv[1]), "insert reversed")
	}
	rootB, err := txB.Commit()
	require.NoError(t, err)

	require.Equal(t, string(rootA), string(rootB), "insertion order changed the committed root")

	snapA := treeA.Current()
	for _, kv := range pairs {
		got, err := snapA.Get(kv[0])
		require.NoError(t, err)
		assert.Equal(t, string(kv[1]), string(got), "value mismatch for key %x", kv[0])
	}
}

func TestSnapshotFallsBackToDiskWhenCacheMisses(t *testing.T) {
	tree := newTestTree(t, "db")

	k := keyAt(7, 88)
	tx, err := tree.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Insert(k, []byte("a")))
	root, err := tx.Commit()
	require.NoError(t, err)

	// evict the root cache entry as if it aged out, forcing Snapshot to
	// fall back to a disk scan instead of serving from memory.
	tree.cache.Remove(root)

	snap, err := tree.Snapshot(root)
	require.NoError(t, err, "cache_only defaults to false, so a cache miss must fall back to disk")

	got, err := snap.Get(k)
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))
}

func TestSnapshotCacheOnlyFailsOnMiss(t *testing.T) {
	mfs := fscap.NewMemFS()
	h, err := hashcap.NewSHA256(testKeyBytes)
	require.NoError(t, err)

	st, err := store.Open(mfs, store.Config{Prefix: "db"}, h, testKeyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	cache, err := rootcache.New(256)
	require.NoError(t, err)

	tree, err := Open(st, cache, h, Config{Bits: testBits, CacheDepth: 4, InitCacheSize: 1, CacheOnly: true}, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	k := keyAt(7, 88)
	tx, err := tree.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Insert(k, []byte("a")))
	root, err := tx.Commit()
	require.NoError(t, err)

	tree.cache.Remove(root)

	_, err = tree.Snapshot(root)
	require.Error(t, err, "cache_only must fail a cache miss rather than scan disk")
}

func TestProofSoundnessAfterRemove(t *testing.T) {
	pairs := randomKeyValues(2, 50)
	tree := newTestTree(t, "db")

	tx, err := tree.Begin()
	require.NoError(t, err)
	for _, kv := range pairs {
		require.NoError(t, tx.Insert(kv[0], kv[1]))
	}
	_, err = tx.Commit()
	require.NoError(t, err)

	removed := pairs[0][0]
	tx2, err := tree.Begin()
	require.NoError(t, err)
	require.NoError(t, tx2.Remove(removed))
	root, err := tx2.Commit()
	require.NoError(t, err)

	snap, err := tree.Snapshot(root)
	require.NoError(t, err)

	p, err := snap.Prove(removed)
	require.NoError(t, err)
	assert.NotEqual(t, proof.Exists, p.Type, "expected an absence proof for the removed key")

	code, value := proof.Verify(tree.h, root, removed, p)
	require.Equal(t, urkelerr.OK, code, "expected OK verifying absence")
	assert.Nil(t, value)

	got, err := snap.Get(removed)
	require.NoError(t, err)
	assert.Nil(t, got, "expected removed key to be absent")
}

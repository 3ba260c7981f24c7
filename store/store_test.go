package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flowdb/urkel/fscap"
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/metrics"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/pointer"
)

const testStoreKeyBytes = 20

func testHash(t *testing.T) hashcap.Hash {
	t.Helper()
	h, err := hashcap.NewSHA256(20)
	require.NoError(t, err)
	return h
}

func TestWriteReadCommitRoundTrip(t *testing.T) {
	fs := fscap.NewMemFS()
	h := testHash(t)
	cfg := Config{Prefix: "db", MaxSegmentSize: 0}

	s, err := Open(fs, cfg, h, testStoreKeyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	key := make([]byte, testStoreKeyBytes)
	key[19] = 0x01
	value := []byte("hello")

	vp, err := s.WriteValue(value)
	require.NoError(t, err)

	leafRec := node.EncodeLeaf(vp, key)
	np, err := s.WriteNode(pointer.TagLeaf, leafRec)
	require.NoError(t, err)

	digest := node.LeafDigest(h, key, value)
	require.NoError(t, s.AppendMetaRoot(np, digest))

	gotValue, err := s.ReadValue(vp)
	require.NoError(t, err)
	require.Equal(t, "hello", string(gotValue))

	gotNode, err := s.ReadNode(np)
	require.NoError(t, err)
	require.Equal(t, string(leafRec), string(gotNode))

	require.NoError(t, s.Close())

	s2, err := Open(fs, cfg, h, testStoreKeyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	rootPtr, rootDigest := s2.Root()
	require.Equal(t, np, rootPtr, "recovered root pointer mismatch")
	require.Equal(t, string(digest), string(rootDigest), "recovered root digest mismatch")
}

func TestRecoveryTruncatesTornTail(t *testing.T) {
	fs := fscap.NewMemFS()
	h := testHash(t)
	cfg := Config{Prefix: "db"}

	s, err := Open(fs, cfg, h, testStoreKeyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	key := make([]byte, testStoreKeyBytes)
	key[19] = 0x02
	value := []byte("committed-value")

	vp, err := s.WriteValue(value)
	require.NoError(t, err)
	leafRec := node.EncodeLeaf(vp, key)
	np, err := s.WriteNode(pointer.TagLeaf, leafRec)
	require.NoError(t, err)

	digest := node.LeafDigest(h, key, value)
	require.NoError(t, s.AppendMetaRoot(np, digest))

	validSize := s.activeLength
	path := s.segmentPath(s.activeSegment)
	require.NoError(t, s.Close())

	// simulate a crash mid-write: a partial node record dangling after
	// the last valid meta record, with no meta record covering it.
	fh, err := fs.Open(path, fscap.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = fh.WriteAt([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, validSize)
	require.NoError(t, err)
	fh.Close() //nolint:errcheck

	s2, err := Open(fs, cfg, h, testStoreKeyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	rootPtr, rootDigest := s2.Root()
	require.Equal(t, np, rootPtr)
	require.Equal(t, string(digest), string(rootDigest))
	require.Equal(t, validSize, s2.activeLength, "expected torn tail truncated")
}

func TestSegmentRollover(t *testing.T) {
	fs := fscap.NewMemFS()
	h := testHash(t)
	cfg := Config{Prefix: "db", MaxSegmentSize: 150}

	s, err := Open(fs, cfg, h, 20, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	var lastNP pointer.Node
	for i := 0; i < 5; i++ {
		np, err := s.WriteNode(pointer.TagLeaf, []byte("0123456789abcdef"))
		require.NoError(t, err)
		require.NoError(t, s.AppendMetaRoot(np, h.Sum([]byte{byte(i)})))
		lastNP = np
	}

	require.GreaterOrEqual(t, len(s.segments), 2, "expected rollover to produce multiple segments")

	got, err := s.ReadNode(lastNP)
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef", string(got))
}

// TestRecoveryRejectsForwardReferencingRootPointer guards §4.2.3's
// requirement that a recovered root pointer lie within an earlier (or
// the same) segment. A record pointing past its own segment cannot
// have been durable when it was written and must be treated like any
// other torn record: skipped in favor of the last good one.
func TestRecoveryRejectsForwardReferencingRootPointer(t *testing.T) {
	fs := fscap.NewMemFS()
	h := testHash(t)
	cfg := Config{Prefix: "db"}

	s, err := Open(fs, cfg, h, testStoreKeyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	key := make([]byte, testStoreKeyBytes)
	key[19] = 0x03
	value := []byte("good-value")

	vp, err := s.WriteValue(value)
	require.NoError(t, err)
	leafRec := node.EncodeLeaf(vp, key)
	np, err := s.WriteNode(pointer.TagLeaf, leafRec)
	require.NoError(t, err)

	goodDigest := node.LeafDigest(h, key, value)
	require.NoError(t, s.AppendMetaRoot(np, goodDigest))

	path := s.segmentPath(s.activeSegment)
	offset := s.activeLength
	require.NoError(t, s.Close())

	// forge a structurally valid but semantically bogus meta record
	// whose root pointer references a segment that does not exist, as
	// if a stray write had scribbled over the tail after the last good
	// commit.
	forged := encodeMeta(metaRecord{rootPtr: pointer.Node{Segment: 99, Size: uint16(len(leafRec)), Tag: pointer.TagLeaf}})
	fh, err := fs.Open(path, fscap.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = fh.WriteAt(forged, offset)
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	s2, err := Open(fs, cfg, h, testStoreKeyBytes, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)

	rootPtr, rootDigest := s2.Root()
	require.Equal(t, np, rootPtr, "expected recovery to fall back past the forward-referencing record")
	require.Equal(t, string(goodDigest), string(rootDigest))
}

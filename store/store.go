// Package store implements the append-only, segment-file-backed
// persistence layer of §4.2: a writer buffer over dense, zero-padded
// segment files, meta root records for crash recovery, and compaction
// support via the Reader/Writer seams other packages drive.
package store

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowdb/urkel/fscap"
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/metrics"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/pointer"
	"github.com/flowdb/urkel/urkelerr"
)

// Reader resolves on-disk node and value records. *Store satisfies it;
// the trie package depends only on this seam, never on Store directly,
// so compaction can read from one store while writing to another.
type Reader interface {
	ReadNode(ptr pointer.Node) ([]byte, error)
	ReadValue(ptr pointer.Value) ([]byte, error)
}

// Writer appends node, value and meta records. *Store satisfies it.
type Writer interface {
	WriteValue(data []byte) (pointer.Value, error)
	WriteNode(tag pointer.Tag, data []byte) (pointer.Node, error)
	AppendMetaRoot(rootPtr pointer.Node, rootDigest []byte) error
}

// Store is the append-only segment log of §4.2. A Store must only ever
// be written to by one goroutine at a time (enforced above it by
// lockfile.Lock across processes, and by the trie's single-live-
// transaction rule within a process); reads are safe for concurrent use.
type Store struct {
	fs     fscap.FS
	prefix string
	cfg    Config
	hash   hashcap.Hash
	keyBytes int
	log    zerolog.Logger
	mcol   metrics.Collector

	mu            sync.RWMutex
	segments      []uint32
	activeSegment uint32
	activeFile    fscap.File
	activeLength  int64
	writeBuf      []byte

	segFiles map[uint32]fscap.File

	rootPtr    pointer.Node
	rootDigest []byte
}

var _ Reader = (*Store)(nil)
var _ Writer = (*Store)(nil)

// Open opens or creates the store at cfg.Prefix, recovering the most
// recent committed root per §4.2.4. The returned root digest and
// pointer describe the tree as of the last durable commit, or the
// empty tree if the store is new.
func Open(fs fscap.FS, cfg Config, h hashcap.Hash, keyBytes int, log zerolog.Logger, mcol metrics.Collector) (*Store, error) {
	if mcol == nil {
		mcol = metrics.NoopCollector{}
	}

	if err := fs.Mkdir(cfg.Prefix, 0o755); err != nil && !fscap.IsErrno(err, fscap.EEXIST) {
		return nil, err
	}

	names, err := fs.Readdir(cfg.Prefix)
	if err != nil {
		return nil, err
	}

	s := &Store{
		fs:       fs,
		prefix:   cfg.Prefix,
		cfg:      cfg,
		hash:     h,
		keyBytes: keyBytes,
		log:      log,
		mcol:     mcol,
		segments: listSegments(names),
		segFiles: make(map[uint32]fscap.File),
	}

	if err := s.recover(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the pointer and digest of the most recently committed
// root.
func (s *Store) Root() (pointer.Node, []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootPtr, s.rootDigest
}

// recover scans segments from newest to oldest for the last valid meta
// record, truncating any torn tail and discarding segments written
// entirely after the last durable commit.
func (s *Store) recover() error {
	if len(s.segments) == 0 {
		return s.openFreshSegment(1)
	}

	for i := len(s.segments) - 1; i >= 0; i-- {
		idx := s.segments[i]

		f, err := s.fs.Open(s.segmentPath(idx), fscap.O_RDWR, 0o644)
		if err != nil {
			return err
		}
		fi, err := f.Fstat()
		if err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		data := make([]byte, fi.Size)
		if fi.Size > 0 {
			n, err := f.ReadAt(data, 0)
			if err != nil {
				f.Close() //nolint:errcheck
				return urkelerr.NewIOError("read", idx, 0, int(fi.Size), err)
			}
			data = data[:n]
		}

		rec, end, ok := scanForMeta(data, idx)
		if !ok {
			// no valid meta anywhere in this segment: everything in it
			// postdates the last durable commit. Discard and keep
			// looking further back.
			f.Close() //nolint:errcheck
			if err := s.fs.Unlink(s.segmentPath(idx)); err != nil {
				return err
			}
			continue
		}

		if int64(end) < fi.Size {
			s.log.Warn().Uint32("segment", idx).Int64("valid_size", int64(end)).
				Int64("file_size", fi.Size).Msg("truncating torn tail after recovery")
			if err := f.Ftruncate(int64(end)); err != nil {
				f.Close() //nolint:errcheck
				return urkelerr.NewIOError("truncate", idx, int64(end), 0, err)
			}
		}

		// any segments newer than idx were entirely unreferenced garbage.
		for j := i + 1; j < len(s.segments); j++ {
			if err := s.fs.Unlink(s.segmentPath(s.segments[j])); err != nil {
				return err
			}
		}
		s.segments = s.segments[:i+1]

		s.activeFile = f
		s.activeSegment = idx
		s.activeLength = int64(end)

		digest, err := s.resolveRootDigest(rec.rootPtr)
		if err != nil {
			return err
		}
		s.rootPtr = rec.rootPtr
		s.rootDigest = digest
		return nil
	}

	// no segment anywhere held a valid meta record: treat as a fresh store.
	return s.openFreshSegment(1)
}

func (s *Store) openFreshSegment(idx uint32) error {
	f, err := s.fs.Open(s.segmentPath(idx), fscap.O_RDWR|fscap.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	s.activeFile = f
	s.activeSegment = idx
	s.activeLength = 0
	s.segments = append(s.segments, idx)
	s.rootPtr = pointer.Node{}
	s.rootDigest = s.hash.Zero()
	return nil
}

func (s *Store) segmentPath(idx uint32) string {
	return s.prefix + "/" + segmentName(idx)
}

// resolveRootDigest recomputes the digest of the node rootPtr
// addresses, directly from its on-disk record. The meta record never
// carries a digest of its own (§6) — every reader, recovery included,
// derives it the same way the commit path does: a leaf's digest needs
// its value read back out; an internal node's digest is computed from
// the child digests already inlined in its record, with no further
// recursion required.
func (s *Store) resolveRootDigest(ptr pointer.Node) ([]byte, error) {
	if ptr.IsZero() {
		return s.hash.Zero(), nil
	}

	data, err := s.ReadNode(ptr)
	if err != nil {
		return nil, err
	}

	switch ptr.Tag {
	case pointer.TagLeaf:
		vp, key, err := node.DecodeLeaf(data, s.keyBytes)
		if err != nil {
			return nil, err
		}
		value, err := s.ReadValue(vp)
		if err != nil {
			return nil, err
		}
		return node.LeafDigest(s.hash, key, value), nil
	case pointer.TagInternal:
		_, lhash, _, rhash, err := node.DecodeInternal(data, s.hash.Size())
		if err != nil {
			return nil, err
		}
		return node.InternalDigest(s.hash, lhash, rhash), nil
	default:
		return nil, urkelerr.Encoding(0, "root pointer has an unrecognized node tag")
	}
}

// scanForMeta searches data, from the end backward, for the most
// recent byte offset holding a structurally valid (magic + CRC32C)
// meta record whose root pointer lies within segIdx, the segment this
// data was read from, or an earlier one (§4.2.3). A record referencing
// a later segment cannot have been durable when it was written and is
// treated the same as a torn or CRC-mismatched one: skipped in favor
// of an earlier candidate.
func scanForMeta(data []byte, segIdx uint32) (metaRecord, int, bool) {
	if len(data) < metaRecordSize {
		return metaRecord{}, 0, false
	}
	for off := len(data) - metaRecordSize; off >= 0; off-- {
		rec, err := decodeMeta(data[off : off+metaRecordSize])
		if err != nil {
			continue
		}
		if !rec.rootPtr.IsZero() && uint32(rec.rootPtr.Segment) > segIdx {
			continue
		}
		return rec, off + metaRecordSize, true
	}
	return metaRecord{}, 0, false
}

// WriteValue appends a raw value payload to the writer buffer and
// returns its pointer. The bytes are not guaranteed durable until the
// next AppendMetaRoot.
func (s *Store) WriteValue(data []byte) (pointer.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSpaceLocked(len(data)); err != nil {
		return pointer.Value{}, err
	}
	if s.activeSegment > 0xFFFF {
		return pointer.Value{}, urkelerr.Assertion("segment index overflows value pointer's 16 bits")
	}

	offset := s.activeLength + int64(len(s.writeBuf))
	vp := pointer.Value{Segment: uint16(s.activeSegment), Offset: uint32(offset), Size: uint16(len(data))}
	s.writeBuf = append(s.writeBuf, data...)
	return vp, nil
}

// WriteNode appends an encoded Internal or Leaf node record to the
// writer buffer and returns its pointer.
func (s *Store) WriteNode(tag pointer.Tag, data []byte) (pointer.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSpaceLocked(len(data)); err != nil {
		return pointer.Node{}, err
	}
	if s.activeSegment > 0x3FFF {
		return pointer.Node{}, urkelerr.Assertion("segment index overflows node pointer's 14 bits")
	}

	offset := s.activeLength + int64(len(s.writeBuf))
	np := pointer.Node{Segment: uint16(s.activeSegment), Offset: uint32(offset), Size: uint16(len(data)), Tag: tag}
	s.writeBuf = append(s.writeBuf, data...)
	return np, nil
}

// AppendMetaRoot flushes the writer buffer, appends a meta root record,
// and fsyncs the segment, making the commit durable (§4.2.3). If the
// segment has now reached its configured size, it is sealed and a new
// one is opened for subsequent writes.
func (s *Store) AppendMetaRoot(rootPtr pointer.Node, rootDigest []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSpaceLocked(metaRecordSize); err != nil {
		return err
	}
	encoded := encodeMeta(metaRecord{rootPtr: rootPtr})

	s.writeBuf = append(s.writeBuf, encoded...)
	if err := s.flushLocked(); err != nil {
		return err
	}
	if err := s.activeFile.Fsync(); err != nil {
		return urkelerr.NewIOError("fsync", s.activeSegment, 0, 0, err)
	}

	s.rootPtr = rootPtr
	s.rootDigest = append([]byte(nil), rootDigest...)

	if s.cfg.MaxSegmentSize > 0 && s.activeLength >= s.cfg.MaxSegmentSize {
		return s.rollSegmentLocked()
	}
	return nil
}

func (s *Store) ensureSpaceLocked(n int) error {
	if s.cfg.MaxSegmentSize <= 0 {
		return nil
	}
	if s.activeLength+int64(len(s.writeBuf))+int64(n) <= s.cfg.MaxSegmentSize {
		return nil
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	return s.rollSegmentLocked()
}

func (s *Store) flushLocked() error {
	if len(s.writeBuf) == 0 {
		return nil
	}
	n, err := s.activeFile.WriteAt(s.writeBuf, s.activeLength)
	if err != nil {
		return urkelerr.NewIOError("write", s.activeSegment, s.activeLength, len(s.writeBuf), err)
	}
	if n != len(s.writeBuf) {
		return urkelerr.NewIOError("write", s.activeSegment, s.activeLength, len(s.writeBuf),
			fmt.Errorf("short write: wrote %d of %d bytes", n, len(s.writeBuf)))
	}
	s.activeLength += int64(n)
	s.writeBuf = s.writeBuf[:0]
	return nil
}

func (s *Store) rollSegmentLocked() error {
	if err := s.flushLocked(); err != nil {
		return err
	}
	if err := s.activeFile.Fsync(); err != nil {
		return urkelerr.NewIOError("fsync", s.activeSegment, 0, 0, err)
	}
	if err := s.activeFile.Close(); err != nil {
		return urkelerr.NewIOError("close", s.activeSegment, 0, 0, err)
	}

	next := s.activeSegment + 1
	f, err := s.fs.Open(s.segmentPath(next), fscap.O_RDWR|fscap.O_CREATE|fscap.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	s.activeFile = f
	s.activeSegment = next
	s.activeLength = 0
	s.segments = append(s.segments, next)
	s.mcol.SegmentRolled(next)
	s.log.Info().Uint32("segment", next).Msg("sealed segment, rolled to new one")
	return nil
}

// ReadNode resolves a node pointer to its encoded record bytes.
func (s *Store) ReadNode(ptr pointer.Node) ([]byte, error) {
	return s.readAt(uint32(ptr.Segment), int64(ptr.Offset), int(ptr.Size))
}

// ReadValue resolves a value pointer to its raw payload bytes.
func (s *Store) ReadValue(ptr pointer.Value) ([]byte, error) {
	return s.readAt(uint32(ptr.Segment), int64(ptr.Offset), int(ptr.Size))
}

func (s *Store) readAt(seg uint32, offset int64, size int) ([]byte, error) {
	s.mu.RLock()
	if seg == s.activeSegment && offset >= s.activeLength {
		bufOff := offset - s.activeLength
		if bufOff >= 0 && bufOff+int64(size) <= int64(len(s.writeBuf)) {
			out := append([]byte(nil), s.writeBuf[bufOff:bufOff+int64(size)]...)
			s.mu.RUnlock()
			return out, nil
		}
	}
	s.mu.RUnlock()

	f, err := s.openSegmentForRead(seg)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, offset)
	if err != nil {
		return nil, urkelerr.NewIOError("read", seg, offset, size, err)
	}
	if n != size {
		return nil, urkelerr.NewIOError("read", seg, offset, size,
			fmt.Errorf("short read: read %d of %d bytes", n, size))
	}
	return buf, nil
}

func (s *Store) openSegmentForRead(seg uint32) (fscap.File, error) {
	s.mu.RLock()
	if seg == s.activeSegment {
		f := s.activeFile
		s.mu.RUnlock()
		return f, nil
	}
	if f, ok := s.segFiles[seg]; ok {
		s.mu.RUnlock()
		return f, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.segFiles[seg]; ok {
		return f, nil
	}
	f, err := s.fs.Open(s.segmentPath(seg), fscap.O_RDONLY, 0o644)
	if err != nil {
		return nil, err
	}
	s.segFiles[seg] = f
	return f, nil
}

// Close flushes the writer buffer and closes every open segment
// handle. It does not fsync; durability comes from AppendMetaRoot.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(); err != nil {
		return err
	}
	var firstErr error
	if s.activeFile != nil {
		if err := s.activeFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for seg, f := range s.segFiles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.segFiles, seg)
	}
	return firstErr
}

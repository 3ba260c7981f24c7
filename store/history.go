package store

import (
	"bytes"

	"github.com/flowdb/urkel/pointer"
)

// RootRecord is one historical meta root record, as surfaced by
// History for the root cache's init_cache_size seeding (§4.2.5).
type RootRecord struct {
	Segment    uint32
	RootPtr    pointer.Node
	RootDigest []byte
}

// History returns up to limit of the most recent meta root records,
// newest first, scanning backward across segments exactly as recover
// does but without stopping at the first match. limit < 0 returns the
// entire history the store still has on disk.
func (s *Store) History(limit int) ([]RootRecord, error) {
	if limit == 0 {
		return nil, nil
	}
	s.mu.RLock()
	segs := append([]uint32(nil), s.segments...)
	s.mu.RUnlock()

	var out []RootRecord
	for i := len(segs) - 1; i >= 0; i-- {
		idx := segs[i]
		data, err := s.readSegmentSnapshot(idx)
		if err != nil {
			return nil, err
		}

		end := len(data)
		for end > 0 {
			rec, recEnd, ok := scanForMeta(data[:end], idx)
			if !ok {
				break
			}
			digest, err := s.resolveRootDigest(rec.rootPtr)
			if err != nil {
				return nil, err
			}
			out = append(out, RootRecord{Segment: idx, RootPtr: rec.rootPtr, RootDigest: digest})
			if limit >= 0 && len(out) >= limit {
				return out, nil
			}
			end = recEnd - metaRecordSize
		}
	}
	return out, nil
}

// FindRoot scans segment history backward, newest first, for the
// record whose root digest equals digest, stopping at the first
// match. It is the disk-scan fallback Snapshot uses when a historical
// root has fallen out of the root cache and the tree is not
// configured cache_only (§4.2.5).
func (s *Store) FindRoot(digest []byte) (RootRecord, bool, error) {
	s.mu.RLock()
	segs := append([]uint32(nil), s.segments...)
	s.mu.RUnlock()

	for i := len(segs) - 1; i >= 0; i-- {
		idx := segs[i]
		data, err := s.readSegmentSnapshot(idx)
		if err != nil {
			return RootRecord{}, false, err
		}

		end := len(data)
		for end > 0 {
			rec, recEnd, ok := scanForMeta(data[:end], idx)
			if !ok {
				break
			}
			rootDigest, err := s.resolveRootDigest(rec.rootPtr)
			if err != nil {
				return RootRecord{}, false, err
			}
			if bytes.Equal(rootDigest, digest) {
				return RootRecord{Segment: idx, RootPtr: rec.rootPtr, RootDigest: rootDigest}, true, nil
			}
			end = recEnd - metaRecordSize
		}
	}
	return RootRecord{}, false, nil
}

// readSegmentSnapshot returns the full current bytes of segment idx,
// including the active segment's still-buffered tail.
func (s *Store) readSegmentSnapshot(idx uint32) ([]byte, error) {
	s.mu.RLock()
	if idx == s.activeSegment {
		flushed := make([]byte, s.activeLength)
		if s.activeLength > 0 {
			if _, err := s.activeFile.ReadAt(flushed, 0); err != nil {
				s.mu.RUnlock()
				return nil, err
			}
		}
		out := append(flushed, s.writeBuf...)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	f, err := s.openSegmentForRead(idx)
	if err != nil {
		return nil, err
	}
	fi, err := f.Fstat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, fi.Size)
	if fi.Size > 0 {
		if _, err := f.ReadAt(buf, 0); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

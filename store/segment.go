package store

import (
	"fmt"
	"sort"
	"strconv"
)

// LockFileName is the reserved, non-numeric entry under a store's
// prefix directory that the mutator lock (package lockfile) is created
// at; parseSegmentName's all-digits check is what keeps it from being
// mistaken for a segment.
const LockFileName = "lock"

// segmentName formats a segment's file name: a zero-padded 10-digit
// decimal counter, dense and starting at 1 (§4.2.1, §6).
func segmentName(index uint32) string {
	return fmt.Sprintf("%010d", index)
}

// parseSegmentName parses a segment file name back to its index,
// returning ok=false for anything that is not exactly 10 decimal
// digits (e.g. the lock file).
func parseSegmentName(name string) (uint32, bool) {
	if len(name) != 10 {
		return 0, false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// listSegments returns the segment indices present under prefix, in
// ascending order.
func listSegments(entries []string) []uint32 {
	var segs []uint32
	for _, name := range entries {
		if idx, ok := parseSegmentName(name); ok {
			segs = append(segs, idx)
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i] < segs[j] })
	return segs
}

// Package metrics is the ambient observability surface: a Collector
// interface the store and trie engine report against, a
// Prometheus-backed implementation, and a NoopCollector default for
// tests and unconfigured deployments.
package metrics

import "time"

// Collector receives operational events from the store and trie
// engine. Implementations must be safe for concurrent use.
type Collector interface {
	// SegmentRolled is called when commit seals a segment and opens the
	// next one.
	SegmentRolled(segmentIndex uint32)
	// CompactionStarted is called when a compaction run begins.
	CompactionStarted()
	// CompactionFinished is called when a compaction run completes,
	// reporting its wall-clock duration.
	CompactionFinished(duration time.Duration)
	// CacheHit is called when a snapshot resolves its root from the
	// root cache.
	CacheHit()
	// CacheMiss is called when a snapshot's root is not in the cache.
	CacheMiss()
	// LockWait is called after the lock file is acquired, reporting how
	// long the caller waited.
	LockWait(duration time.Duration)
	// CommitDuration is called after a commit completes, reporting its
	// wall-clock duration.
	CommitDuration(duration time.Duration)
}

// NoopCollector discards every event. Used in tests and whenever
// metrics are not configured.
type NoopCollector struct{}

func (NoopCollector) SegmentRolled(uint32)            {}
func (NoopCollector) CompactionStarted()               {}
func (NoopCollector) CompactionFinished(time.Duration) {}
func (NoopCollector) CacheHit()                        {}
func (NoopCollector) CacheMiss()                       {}
func (NoopCollector) LockWait(time.Duration)           {}
func (NoopCollector) CommitDuration(time.Duration)     {}

var _ Collector = NoopCollector{}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "urkel"

// Prometheus is a Collector backed by registered counters and
// histograms.
type Prometheus struct {
	segmentRolls        prometheus.Counter
	compactionsStarted  prometheus.Counter
	compactionDuration  prometheus.Histogram
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	lockWaitDuration    prometheus.Histogram
	commitDuration      prometheus.Histogram
}

// NewPrometheus registers a fresh set of collectors against reg and
// returns a Collector reporting to them.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		segmentRolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "segment_rolls_total",
			Help:      "number of times the active segment has been sealed and rolled over",
		}),
		compactionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "compactions_started_total",
			Help:      "number of compaction runs started",
		}),
		compactionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "compaction_duration_seconds",
			Help:      "wall-clock duration of a compaction run",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rootcache",
			Name:      "hits_total",
			Help:      "number of snapshot opens resolved from the root cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rootcache",
			Name:      "misses_total",
			Help:      "number of snapshot opens not found in the root cache",
		}),
		lockWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lockfile",
			Name:      "wait_seconds",
			Help:      "time spent waiting to acquire the mutator lock",
			Buckets:   prometheus.DefBuckets,
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trie",
			Name:      "commit_duration_seconds",
			Help:      "wall-clock duration of a commit",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		p.segmentRolls, p.compactionsStarted, p.compactionDuration,
		p.cacheHits, p.cacheMisses, p.lockWaitDuration, p.commitDuration,
	} {
		reg.MustRegister(c) //nolint:errcheck
	}

	return p
}

func (p *Prometheus) SegmentRolled(uint32) { p.segmentRolls.Inc() }

func (p *Prometheus) CompactionStarted() { p.compactionsStarted.Inc() }

func (p *Prometheus) CompactionFinished(d time.Duration) { p.compactionDuration.Observe(d.Seconds()) }

func (p *Prometheus) CacheHit() { p.cacheHits.Inc() }

func (p *Prometheus) CacheMiss() { p.cacheMisses.Inc() }

func (p *Prometheus) LockWait(d time.Duration) { p.lockWaitDuration.Observe(d.Seconds()) }

func (p *Prometheus) CommitDuration(d time.Duration) { p.commitDuration.Observe(d.Seconds()) }

var _ Collector = (*Prometheus)(nil)

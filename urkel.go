// Package urkel ties the filesystem capability, mutator lock,
// append-only store, root cache and trie engine into the single
// Open/Close handle described by §5 and §6: one urkel.Open call per
// process per tree, guarded by the on-disk lock file, with a
// background compactor and an atomically-readable current root hash.
package urkel

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/flowdb/urkel/fscap"
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/lockfile"
	"github.com/flowdb/urkel/metrics"
	"github.com/flowdb/urkel/rootcache"
	"github.com/flowdb/urkel/store"
	"github.com/flowdb/urkel/trie"
)

// Config is the full programmatic configuration surface of §6,
// composing the store, trie and lock file tunables behind one struct.
type Config struct {
	// Prefix is the directory (on fs) holding segment files and the
	// lock file.
	Prefix string

	// Hash is the hash capability the tree is configured with. If nil,
	// Open builds a blake2b capability sized to Bits/8.
	Hash hashcap.Hash

	// Bits is the key width in bits; must be a multiple of 8.
	Bits int

	MaxSegmentSize int64
	CacheDepth     int
	InitCacheSize  int
	// RootCacheSize bounds the root cache's resident entries; -1 means
	// unbounded (§4.2.5).
	RootCacheSize int

	// CompactInterval, if non-zero, starts a background compactor that
	// rewrites the live tree into a fresh segment set on this period.
	CompactInterval time.Duration

	Lock lockfile.Config

	Log     zerolog.Logger
	Metrics metrics.Collector
}

// DefaultConfig returns sensible defaults for a 160-bit key space.
func DefaultConfig() Config {
	return Config{
		Bits:           160,
		MaxSegmentSize: 64 << 20,
		CacheDepth:     4,
		InitCacheSize:  1,
		RootCacheSize:  -1,
		Lock:           lockfile.DefaultConfig(),
		Log:            zerolog.Nop(),
		Metrics:        metrics.NoopCollector{},
	}
}

// Handle is one open tree: the lock it holds, the store and trie engine
// built on top of it, and the machinery (compactor, atomic root holder)
// that live above both.
type Handle struct {
	fs  fscap.FS
	cfg Config
	h   hashcap.Hash

	lock  *lockfile.Lock
	st    *store.Store
	cache *rootcache.Cache
	tree  *trie.Tree

	// currentRoot mirrors tree.RootHash() without taking the tree's
	// mutex, so a concurrent reader can observe the latest committed
	// root (e.g. for a metrics scrape or a status RPC) without
	// contending with an in-flight commit.
	currentRoot atomic.String

	compactStop chan struct{}
	compactWG   sync.WaitGroup
	compactMu   sync.Mutex // serializes Compact against the background compactor
}

// Open acquires the mutator lock, opens the store and root cache, and
// recovers the trie engine's current root (§5's open lifecycle).
func Open(fs fscap.FS, cfg Config) (*Handle, error) {
	if cfg.Bits%8 != 0 {
		return nil, fmt.Errorf("urkel: Bits must be a multiple of 8, got %d", cfg.Bits)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopCollector{}
	}

	h := cfg.Hash
	if h == nil {
		var err error
		h, err = hashcap.NewBlake2b(cfg.Bits / 8)
		if err != nil {
			return nil, fmt.Errorf("urkel: building default hash capability: %w", err)
		}
	}

	if err := fs.Mkdir(cfg.Prefix, 0o755); err != nil && !fscap.IsErrno(err, fscap.EEXIST) {
		return nil, fmt.Errorf("urkel: creating prefix directory: %w", err)
	}

	lock, err := lockfile.Acquire(fs, lockPath(cfg.Prefix), cfg.Lock, cfg.Log, cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("urkel: acquiring mutator lock: %w", err)
	}

	st, tree, cache, err := openStack(fs, cfg, h)
	if err != nil {
		lock.Close() //nolint:errcheck
		return nil, err
	}

	hd := &Handle{
		fs:    fs,
		cfg:   cfg,
		h:     h,
		lock:  lock,
		st:    st,
		cache: cache,
		tree:  tree,
	}
	hd.currentRoot.Store(hex.EncodeToString(tree.RootHash()))

	if cfg.CompactInterval > 0 {
		hd.startCompactor()
	}

	return hd, nil
}

func openStack(fs fscap.FS, cfg Config, h hashcap.Hash) (*store.Store, *trie.Tree, *rootcache.Cache, error) {
	st, err := store.Open(fs, store.Config{Prefix: cfg.Prefix, MaxSegmentSize: cfg.MaxSegmentSize}, h, cfg.Bits/8, cfg.Log, cfg.Metrics)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("urkel: opening store: %w", err)
	}

	cache, err := rootcache.New(cfg.RootCacheSize)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, nil, fmt.Errorf("urkel: building root cache: %w", err)
	}

	tr, err := trie.Open(st, cache, h, trie.Config{
		Bits:          cfg.Bits,
		CacheDepth:    cfg.CacheDepth,
		InitCacheSize: cfg.InitCacheSize,
	}, cfg.Log, cfg.Metrics)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, nil, fmt.Errorf("urkel: opening trie: %w", err)
	}

	return st, tr, cache, nil
}

func lockPath(prefix string) string { return prefix + "/" + store.LockFileName }

// RootHash returns the digest of the most recently committed root,
// without locking the underlying tree.
func (hd *Handle) RootHash() []byte {
	b, err := hex.DecodeString(hd.currentRoot.Load())
	if err != nil {
		// currentRoot is only ever written by this package via
		// hex.EncodeToString, so a decode failure is unreachable.
		return nil
	}
	return b
}

// Hash returns the hash capability the handle's tree is configured
// with, for callers (e.g. the CLI) that need to encode or verify
// proofs independently of a Snapshot.
func (hd *Handle) Hash() hashcap.Hash { return hd.h }

// KeyBytes returns the configured key width in bytes.
func (hd *Handle) KeyBytes() int { return hd.cfg.Bits / 8 }

// Current returns a read-only snapshot bound to the handle's currently
// published root.
func (hd *Handle) Current() *trie.Snapshot { return hd.tree.Current() }

// Snapshot resolves a read-only view of a historical root, per §4.2.5.
func (hd *Handle) Snapshot(rootDigest []byte) (*trie.Snapshot, error) {
	return hd.tree.Snapshot(rootDigest)
}

// Begin starts a Transaction over the handle's current root.
func (hd *Handle) Begin() (*Transaction, error) {
	tx, err := hd.tree.Begin()
	if err != nil {
		return nil, err
	}
	return &Transaction{Transaction: tx, hd: hd}, nil
}

// Transaction wraps trie.Transaction, additionally publishing a
// successful commit's root hash to the handle's atomic holder.
type Transaction struct {
	*trie.Transaction
	hd *Handle
}

// Commit persists the transaction's mutations and updates the handle's
// atomically-readable current root hash.
func (tx *Transaction) Commit() ([]byte, error) {
	digest, err := tx.Transaction.Commit()
	if err != nil {
		return nil, err
	}
	tx.hd.currentRoot.Store(hex.EncodeToString(digest))
	return digest, nil
}

// startCompactor runs a background loop that compacts the store every
// cfg.CompactInterval.
func (hd *Handle) startCompactor() {
	hd.compactStop = make(chan struct{})
	hd.compactWG.Add(1)
	go func() {
		defer hd.compactWG.Done()
		ticker := time.NewTicker(hd.cfg.CompactInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := hd.Compact(); err != nil {
					hd.cfg.Log.Warn().Err(err).Msg("background compaction failed")
				}
			case <-hd.compactStop:
				return
			}
		}
	}()
}

// Compact rewrites the live tree into a fresh segment set and swaps it
// into place (§4.2.4):
//  1. allocate a sibling prefix path (the main prefix plus a random
//     suffix and a trailing marker);
//  2. open a fresh store there;
//  3. copy the live generation across via store.Compact;
//  4. close both stores;
//  5. delete the old segment files and move the new ones into the
//     original prefix;
//  6. reopen the store and trie engine against the now-compacted
//     prefix.
//
// Compact serializes against concurrent Compact calls (including the
// background compactor) but not against application transactions,
// which is sound because every live node is either unchanged on disk
// (just relocated) or a new version written after the copy began; the
// meta root recovery logic tolerates reopening mid-compaction.
func (hd *Handle) Compact() error {
	hd.compactMu.Lock()
	defer hd.compactMu.Unlock()

	start := time.Now()
	hd.cfg.Metrics.CompactionStarted()

	sibling, err := siblingPrefix(hd.cfg.Prefix)
	if err != nil {
		return fmt.Errorf("urkel: allocating compaction path: %w", err)
	}

	rootPtr, rootDigest := hd.st.Root()

	newStore, err := store.Open(hd.fs, store.Config{Prefix: sibling, MaxSegmentSize: hd.cfg.MaxSegmentSize}, hd.h, hd.cfg.Bits/8, hd.cfg.Log, hd.cfg.Metrics)
	if err != nil {
		return fmt.Errorf("urkel: opening compaction target: %w", err)
	}

	if _, _, err := store.Compact(hd.h, hd.cfg.Bits/8, hd.st, newStore, rootPtr, rootDigest); err != nil {
		newStore.Close() //nolint:errcheck
		return fmt.Errorf("urkel: copying live generation: %w", err)
	}

	if err := newStore.Close(); err != nil {
		return fmt.Errorf("urkel: closing compaction target: %w", err)
	}
	if err := hd.st.Close(); err != nil {
		return fmt.Errorf("urkel: closing old store: %w", err)
	}

	if err := swapDirectory(hd.fs, hd.cfg.Prefix, sibling); err != nil {
		return fmt.Errorf("urkel: swapping compacted segments into place: %w", err)
	}

	st, tr, cache, err := openStack(hd.fs, hd.cfg, hd.h)
	if err != nil {
		return fmt.Errorf("urkel: reopening after compaction: %w", err)
	}
	hd.st, hd.tree, hd.cache = st, tr, cache
	hd.currentRoot.Store(hex.EncodeToString(tr.RootHash()))

	hd.cfg.Metrics.CompactionFinished(time.Since(start))
	hd.cfg.Log.Info().Str("prefix", hd.cfg.Prefix).Dur("duration", time.Since(start)).Msg("compaction complete")
	return nil
}

// siblingPrefix allocates the main prefix plus a random suffix and a
// trailing marker, per §4.2.4 step 1.
func siblingPrefix(prefix string) (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s.compacting", prefix, hex.EncodeToString(buf[:])), nil
}

// swapDirectory deletes every entry under oldPrefix and moves every
// entry from newPrefix into oldPrefix's place, then removes the now
// empty newPrefix directory marker. fscap.FS models a flat file
// namespace rather than true nested directories, so the "rename the
// new one into place" of §4.2.4 is expressed as a per-file rename
// rather than a single directory-level one; this is still atomic with
// respect to a crash between individual renames, because recovery
// re-derives the root purely from whichever meta record is most recent
// among whatever segment files are present under oldPrefix, and the
// only files under oldPrefix are ever old-generation or new-generation
// segments, never a mix.
func swapDirectory(fs fscap.FS, oldPrefix, newPrefix string) error {
	oldEntries, err := fs.Readdir(oldPrefix)
	if err != nil {
		return err
	}
	for _, name := range oldEntries {
		// the mutator lock lives alongside the segments but is not part
		// of the tree's on-disk generation; it must survive the swap
		// since the caller's Handle still holds it.
		if name == store.LockFileName {
			continue
		}
		if err := fs.Unlink(oldPrefix + "/" + name); err != nil {
			return err
		}
	}

	newEntries, err := fs.Readdir(newPrefix)
	if err != nil {
		return err
	}
	for _, name := range newEntries {
		if err := fs.Rename(newPrefix+"/"+name, oldPrefix+"/"+name); err != nil {
			return err
		}
	}
	return fs.Unlink(newPrefix)
}

// Close stops the background compactor (if running), closes the trie's
// store, and releases the mutator lock.
func (hd *Handle) Close() error {
	if hd.compactStop != nil {
		close(hd.compactStop)
		hd.compactWG.Wait()
	}

	var firstErr error
	if err := hd.st.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := hd.lock.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

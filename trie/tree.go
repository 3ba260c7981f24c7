package trie

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/metrics"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/pointer"
	"github.com/flowdb/urkel/proof"
	"github.com/flowdb/urkel/rootcache"
	"github.com/flowdb/urkel/store"
	"github.com/flowdb/urkel/urkelerr"
)

// Config holds the trie-level tunables of §6 not already owned by
// store.Config.
type Config struct {
	// Bits is N, the key width in bits; must be a multiple of 8.
	Bits int
	// CacheDepth bounds the resident top of the tree: commit keeps nodes
	// shallower than CacheDepth resident and replaces nodes at depth
	// CacheDepth or deeper with Hash placeholders.
	CacheDepth int
	// InitCacheSize is how many historical roots to index into the
	// root cache on open; -1 indexes everything the store still has.
	InitCacheSize int
	// CacheOnly refuses to resolve a snapshot whose root is not in the
	// root cache rather than falling back to a disk scan.
	CacheOnly bool
}

// DefaultConfig returns sensible defaults for a 160-bit (20-byte) key
// space.
func DefaultConfig() Config {
	return Config{Bits: 160, CacheDepth: 4, InitCacheSize: 1, CacheOnly: false}
}

const maxValueSize = 65535

// Tree is one urkel tree instance bound to a store and a hash
// capability, implementing §4.1's lookup/insert/remove/commit plus
// iteration, snapshots and transactions. A Tree enforces at most one
// live transaction at a time; the surrounding process-wide mutual
// exclusion is lockfile's job, not Tree's.
type Tree struct {
	h          hashcap.Hash
	keyBytes   int
	bits       int
	cacheDepth int
	cacheOnly  bool

	st    *store.Store
	cache *rootcache.Cache
	log   zerolog.Logger
	mcol  metrics.Collector

	mu         sync.Mutex
	root       *node.Node
	rootDigest []byte
	txLive     bool
}

// Open binds a Tree to an already-opened store, recovering the current
// root from it and seeding the root cache per cfg.InitCacheSize.
func Open(st *store.Store, cache *rootcache.Cache, h hashcap.Hash, cfg Config, log zerolog.Logger, mcol metrics.Collector) (*Tree, error) {
	if mcol == nil {
		mcol = metrics.NoopCollector{}
	}
	if cfg.Bits%8 != 0 {
		return nil, urkelerr.Assertion("bits must be a multiple of 8")
	}

	rootPtr, rootDigest := st.Root()
	t := &Tree{
		h:          h,
		keyBytes:   cfg.Bits / 8,
		bits:       cfg.Bits,
		cacheDepth: cfg.CacheDepth,
		cacheOnly:  cfg.CacheOnly,
		st:         st,
		cache:      cache,
		log:        log,
		mcol:       mcol,
	}

	t.root = rootFromPointer(rootPtr, rootDigest)
	t.rootDigest = rootDigest
	cache.Put(rootDigest, t.root)

	if cfg.InitCacheSize != 0 {
		// History's newest record is the current root, already seeded
		// above; it is skipped below but still counts toward the limit.
		history, err := st.History(cfg.InitCacheSize)
		if err != nil {
			return nil, err
		}
		for _, rec := range history {
			if _, ok := cache.Get(rec.RootDigest); ok {
				continue
			}
			cache.Put(rec.RootDigest, rootFromPointer(rec.RootPtr, rec.RootDigest))
		}
	}

	return t, nil
}

func rootFromPointer(ptr pointer.Node, digest []byte) *node.Node {
	if ptr.IsZero() {
		return node.NIL
	}
	return node.NewHash(digest, ptr)
}

// RootHash returns the digest of the tree's current published root.
func (t *Tree) RootHash() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootDigest
}

// Current returns a Snapshot bound to the tree's current published
// root.
func (t *Tree) Current() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Snapshot{t: t, root: t.root, digest: t.rootDigest}
}

// Snapshot binds a read-only view to a specific historical root,
// resolving it from the root cache first (§4.2.5). On a cache miss, a
// cache_only tree fails immediately; otherwise it falls back to a
// backward disk scan of the store's meta history, seeding the cache
// with whatever it finds so repeat lookups of the same root hit.
func (t *Tree) Snapshot(rootDigest []byte) (*Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if head, ok := t.cache.Get(rootDigest); ok {
		t.mcol.CacheHit()
		return &Snapshot{t: t, root: head, digest: rootDigest}, nil
	}
	t.mcol.CacheMiss()

	if t.cacheOnly {
		return nil, urkelerr.NewMissingNode(rootDigest, nil, nil, 0)
	}

	rec, ok, err := t.st.FindRoot(rootDigest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, urkelerr.NewMissingNode(rootDigest, nil, nil, 0)
	}

	head := rootFromPointer(rec.RootPtr, rec.RootDigest)
	t.cache.Put(rootDigest, head)
	return &Snapshot{t: t, root: head, digest: rootDigest}, nil
}

// Begin starts a Transaction over the tree's current root. Only one
// transaction may be live at a time.
func (t *Tree) Begin() (*Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.txLive {
		return nil, urkelerr.Assertion("only one transaction may be live at a time")
	}
	t.txLive = true
	return &Transaction{t: t, root: t.root}, nil
}

// Snapshot is a read-only view bound to one historical root.
type Snapshot struct {
	t      *Tree
	root   *node.Node
	digest []byte
}

// RootHash returns the root this snapshot is bound to.
func (s *Snapshot) RootHash() []byte { return s.digest }

// Get looks up key, per §4.1.1.
func (s *Snapshot) Get(key []byte) ([]byte, error) {
	return get(s.t.h, s.t.keyBytes, s.t.bits, s.t.st, s.root, key)
}

// Prove builds an inclusion/exclusion proof for key against this
// snapshot's root, per §4.3.
func (s *Snapshot) Prove(key []byte) (*proof.Proof, error) {
	return prove(s.t.h, s.t.keyBytes, s.t.bits, s.t.st, s.root, key)
}

// ProveBatch builds one proof per key, reusing a single descent pass
// per key against this snapshot's root (§4.3).
func (s *Snapshot) ProveBatch(keys [][]byte) ([]*proof.Proof, error) {
	proofs := make([]*proof.Proof, len(keys))
	for i, key := range keys {
		p, err := s.Prove(key)
		if err != nil {
			return nil, err
		}
		proofs[i] = p
	}
	return proofs, nil
}

// Iterator returns a lazy (key, value) iterator over this snapshot.
func (s *Snapshot) Iterator() *Iterator {
	return NewIterator(s.t.h, s.t.keyBytes, s.t.st, s.root)
}

// Transaction is a mutable snapshot of the tree's root at the time it
// was begun. Commit persists and publishes the mutated tree; Clear
// discards pending mutations; Discard releases the transaction slot
// without persisting anything.
type Transaction struct {
	t     *Tree
	root  *node.Node
	dirty bool
}

// Get looks up key against the transaction's current (possibly
// uncommitted) root.
func (tx *Transaction) Get(key []byte) ([]byte, error) {
	return get(tx.t.h, tx.t.keyBytes, tx.t.bits, tx.t.st, tx.root, key)
}

// Prove builds a proof against the transaction's current root.
func (tx *Transaction) Prove(key []byte) (*proof.Proof, error) {
	return prove(tx.t.h, tx.t.keyBytes, tx.t.bits, tx.t.st, tx.root, key)
}

// ProveBatch builds one proof per key against the transaction's current
// root, per the same batch convenience as Snapshot.ProveBatch.
func (tx *Transaction) ProveBatch(keys [][]byte) ([]*proof.Proof, error) {
	proofs := make([]*proof.Proof, len(keys))
	for i, key := range keys {
		p, err := tx.Prove(key)
		if err != nil {
			return nil, err
		}
		proofs[i] = p
	}
	return proofs, nil
}

// Iterator returns a lazy iterator over the transaction's current
// root.
func (tx *Transaction) Iterator() *Iterator {
	return NewIterator(tx.t.h, tx.t.keyBytes, tx.t.st, tx.root)
}

// Insert applies insert per §4.1.2.
func (tx *Transaction) Insert(key, value []byte) error {
	if len(value) > maxValueSize {
		return urkelerr.Assertion("value exceeds the maximum length of 65535 bytes")
	}
	newRoot, err := insert(tx.t.h, tx.t.keyBytes, tx.t.bits, tx.t.st, tx.root, key, value)
	if err != nil {
		return err
	}
	tx.root = newRoot
	tx.dirty = true
	return nil
}

// InsertAll applies Insert for every pair in order, supplementing
// single-key insert with a batch-load convenience.
func (tx *Transaction) InsertAll(pairs [][2][]byte) error {
	for _, kv := range pairs {
		if err := tx.Insert(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// Remove applies remove per §4.1.3.
func (tx *Transaction) Remove(key []byte) error {
	newRoot, err := remove(tx.t.h, tx.t.keyBytes, tx.t.bits, tx.t.st, tx.root, key)
	if err != nil {
		return err
	}
	tx.root = newRoot
	tx.dirty = true
	return nil
}

// Clear discards the transaction's pending mutations, resetting it to
// the tree's currently published root. The transaction remains live.
func (tx *Transaction) Clear() {
	tx.t.mu.Lock()
	defer tx.t.mu.Unlock()
	tx.root = tx.t.root
	tx.dirty = false
}

// Discard releases the transaction slot without persisting any pending
// mutations.
func (tx *Transaction) Discard() {
	tx.t.mu.Lock()
	defer tx.t.mu.Unlock()
	tx.t.txLive = false
}

// Commit performs §4.1.4's post-order write, publishes the new root,
// and releases the transaction slot. If nothing was mutated, it is a
// no-op that still releases the slot.
func (tx *Transaction) Commit() ([]byte, error) {
	t := tx.t
	t.mu.Lock()
	defer t.mu.Unlock()
	defer func() { t.txLive = false }()

	if !tx.dirty {
		return t.rootDigest, nil
	}

	start := time.Now()
	newRoot, err := commitNode(t.h, t.st, t.cacheDepth, 0, tx.root)
	if err != nil {
		return nil, err
	}

	var np pointer.Node
	if !newRoot.IsNil() {
		np = pointerOf(newRoot)
	}
	digest := newRoot.Hash(t.h)

	if err := t.st.AppendMetaRoot(np, digest); err != nil {
		return nil, err
	}

	t.root = newRoot
	t.rootDigest = digest
	t.cache.Put(digest, newRoot)
	t.mcol.CommitDuration(time.Since(start))

	return digest, nil
}

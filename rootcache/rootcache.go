// Package rootcache implements the bounded root cache of §4.2.5: a map
// from a historical root hash to its resident subtree head, so a
// snapshot opened against a recent root can skip disk resolution for
// the nodes commit kept in memory.
//
// Backed by github.com/hashicorp/golang-lru rather than a bespoke map;
// init_cache_size == -1 selects an unbounded mode since the LRU
// implementation requires a positive capacity.
package rootcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/flowdb/urkel/node"
)

// Cache maps root hash -> resident subtree head.
type Cache struct {
	mu        sync.Mutex
	bounded   *lru.Cache
	full      map[string]*node.Node
	unbounded bool
}

// New returns a Cache holding at most size entries, or an unbounded
// cache if size < 0.
func New(size int) (*Cache, error) {
	if size < 0 {
		return &Cache{full: make(map[string]*node.Node), unbounded: true}, nil
	}
	if size == 0 {
		size = 1
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{bounded: l}, nil
}

// Put records head as the resident subtree for root.
func (c *Cache) Put(root []byte, head *node.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := string(root)
	if c.unbounded {
		c.full[key] = head
		return
	}
	c.bounded.Add(key, head)
}

// Get returns the resident subtree head for root, if cached.
func (c *Cache) Get(root []byte) (*node.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := string(root)
	if c.unbounded {
		n, ok := c.full[key]
		return n, ok
	}
	v, ok := c.bounded.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*node.Node), true
}

// Len returns the number of cached roots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unbounded {
		return len(c.full)
	}
	return c.bounded.Len()
}

// Remove evicts root from the cache, if present.
func (c *Cache) Remove(root []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := string(root)
	if c.unbounded {
		delete(c.full, key)
		return
	}
	c.bounded.Remove(key)
}

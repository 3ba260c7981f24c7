package trie

import (
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/store"
)

// Iterator drives the worklist of §4.1.5: a stack of (node, child
// index) frames, expanding Internals left-first and resolving Hash
// frames on demand. Iteration order is bit order, not user key order.
//
// Next returns a bool, errors surface through Err, and the current pair
// through Key/Value — the conventional shape for a Go iterator that
// may fail mid-walk.
type Iterator struct {
	h        hashcap.Hash
	keyBytes int
	r        store.Reader

	stack []iterFrame
	err   error

	key, value []byte
}

type iterFrame struct {
	n        *node.Node
	expanded int // -1 not yet expanded, 0 left done, 1 right done
}

// NewIterator returns an iterator over every (key, value) pair
// reachable from root.
func NewIterator(h hashcap.Hash, keyBytes int, r store.Reader, root *node.Node) *Iterator {
	return &Iterator{
		h:        h,
		keyBytes: keyBytes,
		r:        r,
		stack:    []iterFrame{{n: root, expanded: -1}},
	}
}

// Next advances to the next pair, returning false at the end of the
// iteration or on error (check Err to distinguish the two).
func (it *Iterator) Next() bool {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]

		resolved, err := resolve(it.h, it.keyBytes, it.r, top.n)
		if err != nil {
			it.err = err
			return false
		}
		top.n = resolved

		switch resolved.Kind() {
		case node.KindNIL:
			it.stack = it.stack[:len(it.stack)-1]

		case node.KindLeaf:
			it.stack = it.stack[:len(it.stack)-1]
			value, err := resolveValue(it.r, resolved)
			if err != nil {
				it.err = err
				return false
			}
			it.key = resolved.Key()
			it.value = value
			return true

		case node.KindInternal:
			switch top.expanded {
			case -1:
				top.expanded = 0
				it.stack = append(it.stack, iterFrame{n: resolved.Left(), expanded: -1})
			case 0:
				top.expanded = 1
				it.stack = append(it.stack, iterFrame{n: resolved.Right(), expanded: -1})
			default:
				it.stack = it.stack[:len(it.stack)-1]
			}

		default:
			it.stack = it.stack[:len(it.stack)-1]
		}
	}
	return false
}

// Key returns the key of the pair Next just produced.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the value of the pair Next just produced.
func (it *Iterator) Value() []byte { return it.value }

// Err returns the first error encountered, if Next returned false
// before exhausting the tree.
func (it *Iterator) Err() error { return it.err }

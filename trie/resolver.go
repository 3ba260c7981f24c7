// Package trie implements the mutation algorithms of §4.1: lookup,
// insert, remove, commit, iteration, snapshots and transactions over
// the tagged node representation of package node, resolving Hash
// placeholders through a store.Reader exactly as §9's design notes
// prescribe — an explicit loop and sibling stack, never a recursive
// callback that yields control inside the walk.
package trie

import (
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/pointer"
	"github.com/flowdb/urkel/store"
	"github.com/flowdb/urkel/urkelerr"
)

// resolve decodes n if it is a Hash placeholder, returning a concrete
// NIL/Internal/Leaf node; it returns n itself unchanged otherwise. The
// resolved node carries its on-disk pointer so a later commit can tell
// it was already persisted and skip re-encoding it.
func resolve(h hashcap.Hash, keyBytes int, r store.Reader, n *node.Node) (*node.Node, error) {
	if n.Kind() != node.KindHash {
		return n, nil
	}

	ptr := n.Pointer()
	raw, err := r.ReadNode(ptr)
	if err != nil {
		return nil, err
	}

	switch ptr.Tag {
	case pointer.TagLeaf:
		vp, key, err := node.DecodeLeaf(raw, keyBytes)
		if err != nil {
			return nil, err
		}
		return node.NewLeafFromDisk(n.Hash(h), key, vp, ptr), nil

	case pointer.TagInternal:
		lp, lhash, rp, rhash, err := node.DecodeInternal(raw, h.Size())
		if err != nil {
			return nil, err
		}
		left := node.NIL
		if !lp.IsZero() {
			left = node.NewHash(lhash, lp)
		}
		right := node.NIL
		if !rp.IsZero() {
			right = node.NewHash(rhash, rp)
		}
		return node.NewInternalFromDisk(n.Hash(h), left, right, ptr), nil

	default:
		return nil, urkelerr.Assertion("resolve: unrecognised node pointer tag")
	}
}

// resolveValue returns a Leaf's value, reading it from the store if it
// is not already resident.
func resolveValue(r store.Reader, n *node.Node) ([]byte, error) {
	if n.HasValue() {
		return n.Value(), nil
	}
	return r.ReadValue(n.ValuePointer())
}

package trie

import (
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/pointer"
	"github.com/flowdb/urkel/store"
)

// pointerOf returns the on-disk pointer of an already-persisted node
// (Hash placeholder, or Internal/Leaf carrying a nodePtr), or the zero
// pointer for NIL.
func pointerOf(n *node.Node) pointer.Node {
	if n.IsNil() {
		return pointer.Node{}
	}
	if n.Kind() == node.KindHash {
		return n.Pointer()
	}
	np, _ := n.NodePointer()
	return np
}

// commitNode performs the post-order walk of §4.1.4: write leaf values,
// then node records, bottom-up, collapsing nodes at or below
// cacheDepth into Hash placeholders once written. A node that is
// already persisted (a Hash placeholder, or one carrying a nodePtr
// because it was resolved-but-untouched since the last commit) is
// never re-encoded: it is returned as is, or as a Hash placeholder
// when it sits at or below cacheDepth.
func commitNode(h hashcap.Hash, w store.Writer, cacheDepth, depth int, n *node.Node) (*node.Node, error) {
	if n.IsNil() {
		return node.NIL, nil
	}
	if n.Kind() == node.KindHash {
		return n, nil
	}
	if _, already := n.NodePointer(); already {
		if depth >= cacheDepth {
			return node.NewHash(n.Hash(h), pointerOf(n)), nil
		}
		return n, nil
	}

	switch n.Kind() {
	case node.KindLeaf:
		vp := n.ValuePointer()
		if n.HasValue() {
			var err error
			vp, err = w.WriteValue(n.Value())
			if err != nil {
				return nil, err
			}
		}
		rec := node.EncodeLeaf(vp, n.Key())
		np, err := w.WriteNode(pointer.TagLeaf, rec)
		if err != nil {
			return nil, err
		}
		persisted := node.NewLeafFromDisk(n.Hash(h), n.Key(), vp, np)
		if depth >= cacheDepth {
			return node.NewHash(persisted.Hash(h), np), nil
		}
		return persisted, nil

	case node.KindInternal:
		left, err := commitNode(h, w, cacheDepth, depth+1, n.Left())
		if err != nil {
			return nil, err
		}
		right, err := commitNode(h, w, cacheDepth, depth+1, n.Right())
		if err != nil {
			return nil, err
		}

		rec, err := node.EncodeInternal(pointerOf(left), left.Hash(h), pointerOf(right), right.Hash(h))
		if err != nil {
			return nil, err
		}
		np, err := w.WriteNode(pointer.TagInternal, rec)
		if err != nil {
			return nil, err
		}
		persisted := node.NewInternalFromDisk(n.Hash(h), left, right, np)
		if depth >= cacheDepth {
			return node.NewHash(persisted.Hash(h), np), nil
		}
		return persisted, nil

	default:
		return nil, nil // unreachable: NIL and Hash handled above
	}
}

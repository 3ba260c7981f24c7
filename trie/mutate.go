package trie

import (
	"github.com/flowdb/urkel/bitutil"
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/store"
	"github.com/flowdb/urkel/urkelerr"
)

// foldUp reconstructs the path from depth back up to the root, popping
// one sibling per level off the end of stack (shallowest first, so the
// last element is the sibling immediately above next), per §4.1.2's
// "reconstruct upward" step.
func foldUp(h hashcap.Hash, key []byte, depth int, next *node.Node, stack []*node.Node) *node.Node {
	d := depth
	for i := len(stack) - 1; i >= 0; i-- {
		d--
		sib := stack[i]
		if bitutil.Bit(key, d) == 0 {
			next = node.NewInternal(h, next, sib)
		} else {
			next = node.NewInternal(h, sib, next)
		}
	}
	return next
}

// get implements §4.1.1: walk from root by key bits, resolving Hash
// placeholders on demand.
func get(h hashcap.Hash, keyBytes, bits int, r store.Reader, root *node.Node, key []byte) ([]byte, error) {
	cur := root
	depth := 0

	for {
		resolved, err := resolve(h, keyBytes, r, cur)
		if err != nil {
			return nil, err
		}

		switch resolved.Kind() {
		case node.KindNIL:
			return nil, nil
		case node.KindLeaf:
			if !bitutil.Equal(resolved.Key(), key) {
				return nil, nil
			}
			return resolveValue(r, resolved)
		case node.KindInternal:
			if depth >= bits {
				return nil, urkelerr.NewMissingNode(nil, resolved.Hash(h), key, depth)
			}
			if bitutil.Bit(key, depth) == 0 {
				cur = resolved.Left()
			} else {
				cur = resolved.Right()
			}
			depth++
		default:
			return nil, urkelerr.Assertion("get: unexpected node kind")
		}
	}
}

// insert implements §4.1.2.
func insert(h hashcap.Hash, keyBytes, bits int, r store.Reader, root *node.Node, key, value []byte) (*node.Node, error) {
	var stack []*node.Node
	cur := root
	depth := 0

	for {
		resolved, err := resolve(h, keyBytes, r, cur)
		if err != nil {
			return nil, err
		}

		switch resolved.Kind() {
		case node.KindNIL:
			leaf := node.NewLeaf(h, key, value)
			return foldUp(h, key, depth, leaf, stack), nil

		case node.KindLeaf:
			if bitutil.Equal(resolved.Key(), key) {
				newLeaf := node.NewLeaf(h, key, value)
				if bitutil.Equal(newLeaf.Hash(h), resolved.Hash(h)) {
					return root, nil
				}
				return foldUp(h, key, depth, newLeaf, stack), nil
			}

			d := depth
			for bitutil.Bit(key, d) == bitutil.Bit(resolved.Key(), d) {
				stack = append(stack, node.NIL)
				d++
				if d >= bits {
					return nil, urkelerr.Assertion("insert: two distinct keys compare equal across the full key width")
				}
			}
			stack = append(stack, resolved)
			d++
			newLeaf := node.NewLeaf(h, key, value)
			return foldUp(h, key, d, newLeaf, stack), nil

		case node.KindInternal:
			if depth >= bits {
				return nil, urkelerr.NewMissingNode(nil, resolved.Hash(h), key, depth)
			}
			var sib *node.Node
			if bitutil.Bit(key, depth) == 0 {
				sib = resolved.Right()
				cur = resolved.Left()
			} else {
				sib = resolved.Left()
				cur = resolved.Right()
			}
			stack = append(stack, sib)
			depth++

		default:
			return nil, urkelerr.Assertion("insert: unexpected node kind")
		}
	}
}

// remove implements §4.1.3, including the sibling-collapse rule that
// keeps the canonical shape invariant (one representation per live key
// set) after a key is deleted.
func remove(h hashcap.Hash, keyBytes, bits int, r store.Reader, root *node.Node, key []byte) (*node.Node, error) {
	var stack []*node.Node
	cur := root
	depth := 0

	for {
		resolved, err := resolve(h, keyBytes, r, cur)
		if err != nil {
			return nil, err
		}

		switch resolved.Kind() {
		case node.KindNIL:
			return root, nil

		case node.KindLeaf:
			if !bitutil.Equal(resolved.Key(), key) {
				return root, nil
			}
			if depth == 0 {
				return node.NIL, nil
			}

			sibIdx := len(stack) - 1
			s, err := resolve(h, keyBytes, r, stack[sibIdx])
			if err != nil {
				return nil, err
			}
			stack = stack[:sibIdx]
			d := depth - 1

			if s.Kind() == node.KindLeaf {
				for d > 0 {
					parentIdx := len(stack) - 1
					parentSib := stack[parentIdx]
					if !parentSib.IsNil() {
						break
					}
					if bitutil.Bit(key, d-1) != bitutil.Bit(s.Key(), d-1) {
						break
					}
					stack = stack[:parentIdx]
					d--
				}
				return foldUp(h, key, d, s, stack), nil
			}

			stack = append(stack, s)
			return foldUp(h, key, depth, node.NIL, stack), nil

		case node.KindInternal:
			if depth >= bits {
				return nil, urkelerr.NewMissingNode(nil, resolved.Hash(h), key, depth)
			}
			var sib *node.Node
			if bitutil.Bit(key, depth) == 0 {
				sib = resolved.Right()
				cur = resolved.Left()
			} else {
				sib = resolved.Left()
				cur = resolved.Right()
			}
			stack = append(stack, sib)
			depth++

		default:
			return nil, urkelerr.Assertion("remove: unexpected node kind")
		}
	}
}

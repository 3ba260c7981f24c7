package trie

import (
	"github.com/flowdb/urkel/bitutil"
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/proof"
	"github.com/flowdb/urkel/store"
)

// prove descends exactly as get does, but keeps the sibling digests
// instead of discarding them, producing the §4.3 proof shape matching
// whichever of the three termination cases the descent hits.
func prove(h hashcap.Hash, keyBytes, bits int, r store.Reader, root *node.Node, key []byte) (*proof.Proof, error) {
	var siblings [][]byte
	cur := root
	depth := 0

	for {
		resolved, err := resolve(h, keyBytes, r, cur)
		if err != nil {
			return nil, err
		}

		switch resolved.Kind() {
		case node.KindNIL:
			return &proof.Proof{Type: proof.DeadEnd, Siblings: siblings}, nil

		case node.KindLeaf:
			if bitutil.Equal(resolved.Key(), key) {
				value, err := resolveValue(r, resolved)
				if err != nil {
					return nil, err
				}
				return &proof.Proof{Type: proof.Exists, Value: value, Siblings: siblings}, nil
			}
			value, err := resolveValue(r, resolved)
			if err != nil {
				return nil, err
			}
			return &proof.Proof{
				Type:             proof.Collision,
				OtherKey:         resolved.Key(),
				OtherValueDigest: h.Sum(value),
				Siblings:         siblings,
			}, nil

		case node.KindInternal:
			var sib *node.Node
			if bitutil.Bit(key, depth) == 0 {
				sib = resolved.Right()
				cur = resolved.Left()
			} else {
				sib = resolved.Left()
				cur = resolved.Right()
			}
			resolvedSib, err := resolve(h, keyBytes, r, sib)
			if err != nil {
				return nil, err
			}
			siblings = append(siblings, resolvedSib.Hash(h))
			depth++
		}
	}
}

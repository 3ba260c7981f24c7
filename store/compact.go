package store

import (
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/node"
	"github.com/flowdb/urkel/pointer"
	"github.com/flowdb/urkel/urkelerr"
)

// Compact rebuilds the tree rooted at (rootPtr, rootDigest) into dst by
// a post-order copy from src, producing a fresh segment set that holds
// only the live generation (§4.2.5). Digests are untouched by the
// copy — only physical placement changes — so the returned root digest
// always equals rootDigest; it is returned anyway so callers do not
// need to thread the original through separately.
func Compact(h hashcap.Hash, keyBytes int, src Reader, dst Writer, rootPtr pointer.Node, rootDigest []byte) (pointer.Node, []byte, error) {
	if rootPtr.IsZero() {
		if err := dst.AppendMetaRoot(pointer.Node{}, rootDigest); err != nil {
			return pointer.Node{}, nil, err
		}
		return pointer.Node{}, rootDigest, nil
	}

	newPtr, err := rewriteNode(h, keyBytes, src, dst, rootPtr)
	if err != nil {
		return pointer.Node{}, nil, err
	}
	if err := dst.AppendMetaRoot(newPtr, rootDigest); err != nil {
		return pointer.Node{}, nil, err
	}
	return newPtr, rootDigest, nil
}

// rewriteNode copies the single on-disk node at ptr (and, recursively,
// its subtree) from src to dst, returning its pointer in dst.
func rewriteNode(h hashcap.Hash, keyBytes int, src Reader, dst Writer, ptr pointer.Node) (pointer.Node, error) {
	raw, err := src.ReadNode(ptr)
	if err != nil {
		return pointer.Node{}, err
	}

	switch ptr.Tag {
	case pointer.TagLeaf:
		vp, key, err := node.DecodeLeaf(raw, keyBytes)
		if err != nil {
			return pointer.Node{}, err
		}
		val, err := src.ReadValue(vp)
		if err != nil {
			return pointer.Node{}, err
		}
		newVP, err := dst.WriteValue(val)
		if err != nil {
			return pointer.Node{}, err
		}
		rec := node.EncodeLeaf(newVP, key)
		return dst.WriteNode(pointer.TagLeaf, rec)

	case pointer.TagInternal:
		lp, lhash, rp, rhash, err := node.DecodeInternal(raw, h.Size())
		if err != nil {
			return pointer.Node{}, err
		}

		var newLP, newRP pointer.Node
		if !lp.IsZero() {
			newLP, err = rewriteNode(h, keyBytes, src, dst, lp)
			if err != nil {
				return pointer.Node{}, err
			}
		}
		if !rp.IsZero() {
			newRP, err = rewriteNode(h, keyBytes, src, dst, rp)
			if err != nil {
				return pointer.Node{}, err
			}
		}

		rec, err := node.EncodeInternal(newLP, lhash, newRP, rhash)
		if err != nil {
			return pointer.Node{}, err
		}
		return dst.WriteNode(pointer.TagInternal, rec)

	default:
		return pointer.Node{}, urkelerr.Assertion("unknown node pointer tag during compaction")
	}
}

// Package node implements the four node variants of §3.2 as a single
// tagged struct rather than a class hierarchy. Kind adds the explicit
// Hash placeholder variant: an unresolved reference to an on-disk
// Internal or Leaf record.
//
// NIL is a shared immutable singleton, never allocated per occurrence.
// Internal and Leaf are copy-on-write: mutation always produces a new
// *Node rather than editing one in place, so a Node reachable from an
// already-committed root is never changed underneath a reader holding
// a snapshot of that root.
package node

import (
	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/pointer"
)

// Kind tags which of the four node variants a Node value is.
type Kind uint8

const (
	// KindNIL is the absent-subtree singleton.
	KindNIL Kind = iota
	// KindInternal has exactly two children.
	KindInternal
	// KindLeaf carries a key and, optionally, its value.
	KindLeaf
	// KindHash is an unresolved on-disk placeholder.
	KindHash
)

// Node is one of NIL, Internal, Leaf, or Hash. Only the fields relevant
// to its Kind are meaningful; see the per-kind constructors.
type Node struct {
	kind Kind

	// Internal
	left, right *Node

	// Leaf
	key      []byte
	value    []byte // resident value; nil if only valuePtr is known
	valuePtr pointer.Value
	hasValue bool // whether value is resident (vs. only valuePtr)

	// Hash placeholder: identifies the on-disk variant to decode on resolve.
	ptr pointer.Node

	// node pointer assigned at commit time, for Internal/Leaf once written.
	nodePtr    pointer.Node
	hasNodePtr bool

	digest []byte
}

// NIL is the unique, shared empty-subtree singleton. It is never
// allocated per occurrence and must never be mutated.
var NIL = &Node{kind: KindNIL}

// IsNil reports whether n is the NIL singleton.
func (n *Node) IsNil() bool { return n == nil || n.kind == KindNIL }

// Kind returns n's variant tag.
func (n *Node) Kind() Kind { return n.kind }

// NewLeaf builds a resident Leaf node holding (key, value) and computes
// its digest immediately (invariant 2: a leaf's digest never changes
// shape independent of its position, so it is safe to precompute).
func NewLeaf(h hashcap.Hash, key, value []byte) *Node {
	return &Node{
		kind:     KindLeaf,
		key:      append([]byte(nil), key...),
		value:    append([]byte(nil), value...),
		hasValue: true,
		digest:   LeafDigest(h, key, value),
	}
}

// NewInternal builds an Internal node over the given children and
// computes its digest from the children's digests (invariant 4).
func NewInternal(h hashcap.Hash, left, right *Node) *Node {
	return &Node{
		kind:   KindInternal,
		left:   left,
		right:  right,
		digest: InternalDigest(h, left.Hash(h), right.Hash(h)),
	}
}

// NewHash builds an unresolved placeholder for a node stored on disk at
// ptr, with the given (already-known) digest.
func NewHash(digest []byte, ptr pointer.Node) *Node {
	return &Node{
		kind:   KindHash,
		digest: append([]byte(nil), digest...),
		ptr:    ptr,
	}
}

// NewLeafFromDisk rebuilds a Leaf resolved from an on-disk record: its
// digest is already known (it was carried by the Hash placeholder being
// resolved) so it is not recomputed from the value, which may not even
// be resident yet. np is the pointer the record was read from, so the
// rebuilt Leaf is immediately recognisable as already persisted.
func NewLeafFromDisk(digest, key []byte, vp pointer.Value, np pointer.Node) *Node {
	return &Node{
		kind:       KindLeaf,
		key:        append([]byte(nil), key...),
		valuePtr:   vp,
		digest:     append([]byte(nil), digest...),
		nodePtr:    np,
		hasNodePtr: true,
	}
}

// NewInternalFromDisk rebuilds an Internal resolved from an on-disk
// record, with left and right already the correct (possibly still
// unresolved Hash) children and a known digest, carrying np so the
// rebuilt node is recognisable as already persisted.
func NewInternalFromDisk(digest []byte, left, right *Node, np pointer.Node) *Node {
	return &Node{
		kind:       KindInternal,
		left:       left,
		right:      right,
		digest:     append([]byte(nil), digest...),
		nodePtr:    np,
		hasNodePtr: true,
	}
}

// Hash returns n's digest, computing it for NIL lazily from h's zero
// sentinel (NIL never caches since the singleton is shared across
// trees configured with different hash capabilities in tests).
func (n *Node) Hash(h hashcap.Hash) []byte {
	if n.IsNil() {
		return h.Zero()
	}
	return n.digest
}

// Left returns the left child of an Internal node.
func (n *Node) Left() *Node { return n.left }

// Right returns the right child of an Internal node.
func (n *Node) Right() *Node { return n.right }

// Key returns the key of a Leaf node.
func (n *Node) Key() []byte { return n.key }

// Value returns the resident value of a Leaf node, or nil if only a
// pointer is known (call HasValue to distinguish from an empty value).
func (n *Node) Value() []byte { return n.value }

// HasValue reports whether a Leaf's value is resident in memory.
func (n *Node) HasValue() bool { return n.hasValue || n.value != nil }

// ValuePointer returns the on-disk pointer to a Leaf's value, valid
// once the leaf has been committed or loaded from disk with an
// unresolved value.
func (n *Node) ValuePointer() pointer.Value { return n.valuePtr }

// WithResidentValue returns a copy of a Leaf node carrying an eagerly
// resolved value.
func (n *Node) WithResidentValue(value []byte) *Node {
	cp := *n
	cp.value = value
	cp.hasValue = true
	return &cp
}

// Pointer returns the on-disk pointer a Hash placeholder stands in for.
func (n *Node) Pointer() pointer.Node { return n.ptr }

// NodePointer returns the pointer assigned to an Internal or Leaf node
// once it has been written during commit.
func (n *Node) NodePointer() (pointer.Node, bool) { return n.nodePtr, n.hasNodePtr }

// WithNodePointer returns a copy of n carrying np as its assigned
// on-disk pointer.
func (n *Node) WithNodePointer(np pointer.Node) *Node {
	cp := *n
	cp.nodePtr = np
	cp.hasNodePtr = true
	return &cp
}

// Tag returns the pointer variant tag for n's kind (Internal or Leaf
// only).
func (n *Node) Tag() pointer.Tag {
	switch n.kind {
	case KindInternal:
		return pointer.TagInternal
	case KindLeaf:
		return pointer.TagLeaf
	default:
		return pointer.TagNone
	}
}

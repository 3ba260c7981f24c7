package node

import (
	"github.com/flowdb/urkel/pointer"
	"github.com/flowdb/urkel/urkelerr"
)

// EncodeInternal encodes an internal node record per §6:
// [lptr:7][lhash:H][rptr:7][rhash:H]. A NIL child is passed as the zero
// pointer.Node and the hash capability's Zero() digest.
func EncodeInternal(lp pointer.Node, lhash []byte, rp pointer.Node, rhash []byte) ([]byte, error) {
	lpb, err := lp.Encode()
	if err != nil {
		return nil, err
	}
	rpb, err := rp.Encode()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 2*pointer.NodeSize+len(lhash)+len(rhash))
	buf = append(buf, lpb[:]...)
	buf = append(buf, lhash...)
	buf = append(buf, rpb[:]...)
	buf = append(buf, rhash...)
	return buf, nil
}

// DecodeInternal decodes an internal node record, given the digest size
// hashSize.
func DecodeInternal(buf []byte, hashSize int) (lp pointer.Node, lhash []byte, rp pointer.Node, rhash []byte, err error) {
	want := 2*pointer.NodeSize + 2*hashSize
	if len(buf) < want {
		return lp, nil, rp, nil, urkelerr.Encoding(0, "short buffer for internal node record")
	}

	lp, err = pointer.DecodeNode(buf[0:pointer.NodeSize])
	if err != nil {
		return lp, nil, rp, nil, err
	}
	off := pointer.NodeSize
	lhash = append([]byte(nil), buf[off:off+hashSize]...)
	off += hashSize

	rp, err = pointer.DecodeNode(buf[off : off+pointer.NodeSize])
	if err != nil {
		return lp, nil, rp, nil, err
	}
	off += pointer.NodeSize
	rhash = append([]byte(nil), buf[off:off+hashSize]...)

	return lp, lhash, rp, rhash, nil
}

// EncodeLeaf encodes a leaf node record per §6: [vptr:8][key:N/8]. The
// value bytes are stored separately at vptr.
func EncodeLeaf(vp pointer.Value, key []byte) []byte {
	vpb := vp.Encode()
	buf := make([]byte, 0, pointer.ValueSize+len(key))
	buf = append(buf, vpb[:]...)
	buf = append(buf, key...)
	return buf
}

// DecodeLeaf decodes a leaf node record, given the key width keyBytes
// (N/8).
func DecodeLeaf(buf []byte, keyBytes int) (vp pointer.Value, key []byte, err error) {
	want := pointer.ValueSize + keyBytes
	if len(buf) < want {
		return vp, nil, urkelerr.Encoding(0, "short buffer for leaf node record")
	}
	vp, err = pointer.DecodeValue(buf[0:pointer.ValueSize])
	if err != nil {
		return vp, nil, err
	}
	key = append([]byte(nil), buf[pointer.ValueSize:want]...)
	return vp, key, nil
}

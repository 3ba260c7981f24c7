package proof

import (
	"encoding/binary"

	"github.com/flowdb/urkel/hashcap"
	"github.com/flowdb/urkel/urkelerr"
)

// EncodeBatch serializes a sequence of independent proofs, each still a
// standalone §4.3 encoding, prefixed with a count.
func EncodeBatch(h hashcap.Hash, proofs []*Proof) ([]byte, error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(proofs)))

	for _, p := range proofs {
		enc, err := Encode(h, p)
		if err != nil {
			return nil, err
		}
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(enc)))
		buf = append(buf, lenBuf...)
		buf = append(buf, enc...)
	}
	return buf, nil
}

// DecodeBatch parses an EncodeBatch payload.
func DecodeBatch(h hashcap.Hash, buf []byte, keyBytes int) ([]*Proof, error) {
	if len(buf) < 4 {
		return nil, urkelerr.Encoding(0, "short buffer for batch proof count")
	}
	count := int(binary.BigEndian.Uint32(buf))
	off := 4

	proofs := make([]*Proof, 0, count)
	for i := 0; i < count; i++ {
		if len(buf) < off+4 {
			return nil, urkelerr.Encoding(int64(off), "short buffer for batch proof entry length")
		}
		entryLen := int(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
		if len(buf) < off+entryLen {
			return nil, urkelerr.Encoding(int64(off), "short buffer for batch proof entry")
		}
		p, err := Decode(h, buf[off:off+entryLen], keyBytes)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
		off += entryLen
	}
	return proofs, nil
}

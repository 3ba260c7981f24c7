package store

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/flowdb/urkel/pointer"
	"github.com/flowdb/urkel/urkelerr"
)

// metaMagic tags a meta root record so recovery can tell it apart from
// the node/value records that precede it in a segment (§4.2.3).
var metaMagic = [4]byte{0x6D, 0x65, 0x74, 0x61} // "meta"

// crc32cTable is the Castagnoli table used for meta record checksums.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// metaRecordSize is the fixed on-disk length of a meta record (§6):
// magic(4) + state(2) + size(2) + rootPtr(7) + padding(to 64) +
// crc32c(4). It never varies with the hash capability's digest size —
// the record carries only a pointer to the root node, never the
// node's digest, which every reader recomputes from the node record
// itself exactly as it would for any other node in the tree.
const metaRecordSize = 64

// metaStateReserved is the record's reserved state field, always 0.
const metaStateReserved uint16 = 0

// metaSizeField is the record's self-reported size field, fixed at
// metaRecordSize.
const metaSizeField uint16 = metaRecordSize

// metaRecord is the root pointer record appended after every commit.
type metaRecord struct {
	rootPtr pointer.Node
}

// encodeMeta serializes m into a fixed metaRecordSize-byte record.
func encodeMeta(m metaRecord) []byte {
	buf := make([]byte, metaRecordSize)

	copy(buf[0:4], metaMagic[:])
	binary.BigEndian.PutUint16(buf[4:6], metaStateReserved)
	binary.BigEndian.PutUint16(buf[6:8], metaSizeField)

	ptrBuf, err := m.rootPtr.Encode()
	if err != nil {
		// rootPtr is always derived from an in-range commit; a violation
		// here is a programmer error, not a recoverable condition.
		panic(err)
	}
	copy(buf[8:8+pointer.NodeSize], ptrBuf[:])

	crcOff := metaRecordSize - 4
	crc := crc32.Checksum(buf[4:crcOff], crc32cTable) // CRC covers state..padding, not magic
	binary.BigEndian.PutUint32(buf[crcOff:metaRecordSize], crc)

	return buf
}

// decodeMeta parses a meta record previously produced by encodeMeta,
// verifying its magic, its self-reported size, and its CRC. A mismatch
// on any means the record is torn (a partial write cut short by a
// crash) and must be rejected so the caller can fall back to an
// earlier one.
func decodeMeta(buf []byte) (metaRecord, error) {
	if len(buf) < metaRecordSize {
		return metaRecord{}, urkelerr.Encoding(0, "short buffer for meta record")
	}
	if buf[0] != metaMagic[0] || buf[1] != metaMagic[1] || buf[2] != metaMagic[2] || buf[3] != metaMagic[3] {
		return metaRecord{}, urkelerr.Encoding(0, "meta record magic mismatch")
	}
	if size := binary.BigEndian.Uint16(buf[6:8]); size != metaSizeField {
		return metaRecord{}, urkelerr.Encoding(6, "meta record size field mismatch")
	}

	rootPtr, err := pointer.DecodeNode(buf[8 : 8+pointer.NodeSize])
	if err != nil {
		return metaRecord{}, err
	}

	crcOff := metaRecordSize - 4
	wantCRC := binary.BigEndian.Uint32(buf[crcOff:metaRecordSize])
	gotCRC := crc32.Checksum(buf[4:crcOff], crc32cTable)
	if wantCRC != gotCRC {
		return metaRecord{}, urkelerr.Encoding(int64(crcOff), "meta record CRC32C mismatch")
	}

	return metaRecord{rootPtr: rootPtr}, nil
}

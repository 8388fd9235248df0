// Package tuple defines the wire encoding for a row's bytes as they
// travel between a heap page, the write-ahead log, and the C8 operator
// contract. Grounded on BusTub's Tuple::SerializeTo/DeserializeFrom
// (original_source/src/recovery/log_manager.cpp callers pass tuples
// through a 4-byte length prefix followed by raw bytes); the teacher's
// own types.Row is a structured, schema-aware record, so this package
// only owns the raw-bytes half of that — Record (record.go) layers row
// structure on top.
package tuple

import "encoding/binary"

// Tuple is an opaque, already-serialized row. Record (record.go)
// interprets the bytes as a column map; this package only owns getting
// them on and off the wire intact, including embedded NUL bytes.
type Tuple []byte

// EncodedSize is the number of bytes Encode will write: a 4-byte length
// prefix followed by the tuple's own bytes.
func (t Tuple) EncodedSize() int { return 4 + len(t) }

// Encode writes the length-prefixed tuple into buf, which must be at
// least EncodedSize() bytes, and returns the number of bytes written.
func (t Tuple) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(t)))
	copy(buf[4:], t)
	return t.EncodedSize()
}

// Decode reads a length-prefixed tuple from the front of buf, returning
// the tuple, the number of bytes consumed, and false if buf does not
// actually hold a complete length-prefixed tuple — a torn write at the
// tail of the log, or a corrupt declared length, must not be sliced past
// what buf holds.
func Decode(buf []byte) (Tuple, int, bool) {
	if len(buf) < 4 {
		return nil, 0, false
	}
	size := binary.LittleEndian.Uint32(buf[0:4])
	if int(size) > len(buf)-4 {
		return nil, 0, false
	}
	t := make(Tuple, size)
	copy(t, buf[4:4+size])
	return t, 4 + int(size), true
}

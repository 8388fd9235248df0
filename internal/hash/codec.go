// Package hash implements the persistent linear-probing hash index
// (spec.md C5): a header page pointing at a growable set of fixed-capacity
// block pages, each an array of (key, RID) cells guarded by parallel
// occupied/readable bitmaps. Grounded on
// original_source/src/container/hash/linear_probe_hash_table.cpp for the
// Insert/GetValue/Remove/Resize control flow and
// original_source/src/storage/page/hash_table_block_page.cpp for the
// bitmap semantics; generalized from BusTub's C++ template parameters
// into Go generics over a page.Codec[K], since the teacher has no hash
// index at all (its only secondary index is the B+-tree, out of scope per
// spec.md's Non-goals).
package hash

import (
	"encoding/binary"

	"corestore/internal/page"
	"corestore/internal/types"
)

// RIDCodec encodes the hash table's value type, always a RID.
type RIDCodec struct{}

func (RIDCodec) Size() int                      { return types.RIDSize }
func (RIDCodec) Encode(v types.RID, buf []byte) { v.Encode(buf) }
func (RIDCodec) Decode(buf []byte) types.RID    { return types.DecodeRID(buf) }

// Int64Codec encodes a fixed-width int64 key.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }
func (Int64Codec) Encode(v int64, buf []byte) {
	binary.LittleEndian.PutUint64(buf, uint64(v))
}
func (Int64Codec) Decode(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}

// BytesCodec encodes byte-slice keys into a fixed-width cell, truncating
// or zero-padding on the right — used for indexing on a fixed-length
// column such as a CHAR(n) primary key.
type BytesCodec struct{ N int }

func (c BytesCodec) Size() int { return c.N }

func (c BytesCodec) Encode(v []byte, buf []byte) {
	n := copy(buf, v)
	for i := n; i < c.N; i++ {
		buf[i] = 0
	}
}

func (c BytesCodec) Decode(buf []byte) []byte {
	out := make([]byte, c.N)
	copy(out, buf)
	return out
}

var _ page.Codec[types.RID] = RIDCodec{}
var _ page.Codec[int64] = Int64Codec{}
var _ page.Codec[[]byte] = BytesCodec{}

package page

import "encoding/binary"

// TmpTuplePage is scratch storage for tuples that must outlive a single
// Next() call — the hash-join executor (spec.md C8) spills its build-side
// rows here rather than holding them in a Go slice, so that a join over a
// build side larger than memory still only ever touches pages the buffer
// pool manages. Grounded on
// original_source/src/include/storage/page/tmp_tuple_page.h:
// PageId(4)|LSN(4)|FreeSpace(4)|...free space...|entries growing from the
// tail, each stored as a 4-byte length prefix followed by its bytes.
const tmpTupleOffsetFreeSpace = 8
const tmpTupleHeaderSize = 12

type TmpTuplePage struct {
	*Page
}

func WrapTmpTuplePage(p *Page) *TmpTuplePage { return &TmpTuplePage{Page: p} }

// Init formats a freshly allocated page as an empty scratch page.
func (t *TmpTuplePage) Init() {
	t.putFreeSpacePtr(Size)
}

func (t *TmpTuplePage) freeSpacePtr() int {
	return int(binary.LittleEndian.Uint32(t.Data[tmpTupleOffsetFreeSpace : tmpTupleOffsetFreeSpace+4]))
}

func (t *TmpTuplePage) putFreeSpacePtr(off int) {
	binary.LittleEndian.PutUint32(t.Data[tmpTupleOffsetFreeSpace:tmpTupleOffsetFreeSpace+4], uint32(off))
}

// Insert appends data to the page, returning the byte offset it was
// written at (used as the "tuple offset" half of a TmpTuple location
// alongside this page's id) and false if the page has no room.
func (t *TmpTuplePage) Insert(data []byte) (int, bool) {
	needed := 4 + len(data)
	if t.freeSpacePtr()-tmpTupleHeaderSize < needed {
		return 0, false
	}
	newOff := t.freeSpacePtr() - needed
	binary.LittleEndian.PutUint32(t.Data[newOff:newOff+4], uint32(len(data)))
	copy(t.Data[newOff+4:newOff+4+len(data)], data)
	t.putFreeSpacePtr(newOff)
	return newOff, true
}

// Get reads back the bytes written by Insert at offset.
func (t *TmpTuplePage) Get(offset int) []byte {
	size := binary.LittleEndian.Uint32(t.Data[offset : offset+4])
	out := make([]byte, size)
	copy(out, t.Data[offset+4:offset+4+int(size)])
	return out
}

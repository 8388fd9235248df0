package page

import (
	"encoding/binary"

	"corestore/internal/types"
)

// Heap page layout (spec.md §3: "a slot directory growing from the header
// while tuple data grows from the tail"). This inverts the teacher's own
// heapfile_manager, whose PageHeader/Slot pair grows the directory
// backward from the tail and tuple bytes forward from the header — here
// the directory sits right after the fixed header and grows towards the
// tail, while tuple bytes are appended from the tail towards the header,
// matching the layout spec.md calls out explicitly.
//
//	[0:4)   page id            (common Page header)
//	[4:8)   page LSN           (common Page header)
//	[8:12)  prev page id
//	[12:16) next page id
//	[16:18) slot count
//	[18:20) free space pointer (offset of the start of tuple data)
//	[20:...) slot directory, growing forward, 4 bytes per slot:
//	           [0:2) tuple offset
//	           [2:4) tuple size, high bit set => tombstone
//	...tail]  tuple bytes, growing backward
const (
	heapOffsetPrevPageID  = 8
	heapOffsetNextPageID  = 12
	heapOffsetSlotCount   = 16
	heapOffsetFreeSpace   = 18
	heapHeaderSize        = 20
	heapSlotSize          = 4
	heapTombstoneBit      = uint16(1 << 15)
	heapSizeMask          = heapTombstoneBit - 1
)

// HeapPage is a view over a Page's Data for table-heap storage. It holds
// no bytes of its own; all state lives in the wrapped Page so the buffer
// pool remains the single owner of the underlying memory.
type HeapPage struct {
	*Page
}

// WrapHeapPage views an already-fetched Page as a heap page.
func WrapHeapPage(p *Page) *HeapPage { return &HeapPage{Page: p} }

// Init formats a freshly allocated page as an empty heap page.
func (h *HeapPage) Init(prev types.PageID) {
	h.putPrevPageID(prev)
	h.putNextPageID(types.InvalidPageID)
	h.putSlotCount(0)
	h.putFreeSpace(Size)
}

func (h *HeapPage) PrevPageID() types.PageID {
	return types.PageID(binary.LittleEndian.Uint32(h.Data[heapOffsetPrevPageID : heapOffsetPrevPageID+4]))
}

func (h *HeapPage) putPrevPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(h.Data[heapOffsetPrevPageID:heapOffsetPrevPageID+4], uint32(id))
}

func (h *HeapPage) NextPageID() types.PageID {
	return types.PageID(binary.LittleEndian.Uint32(h.Data[heapOffsetNextPageID : heapOffsetNextPageID+4]))
}

func (h *HeapPage) SetNextPageID(id types.PageID) {
	h.putNextPageID(id)
}

func (h *HeapPage) putNextPageID(id types.PageID) {
	binary.LittleEndian.PutUint32(h.Data[heapOffsetNextPageID:heapOffsetNextPageID+4], uint32(id))
}

func (h *HeapPage) SlotCount() uint32 {
	return uint32(binary.LittleEndian.Uint16(h.Data[heapOffsetSlotCount : heapOffsetSlotCount+2]))
}

func (h *HeapPage) putSlotCount(n uint32) {
	binary.LittleEndian.PutUint16(h.Data[heapOffsetSlotCount:heapOffsetSlotCount+2], uint16(n))
}

func (h *HeapPage) freeSpacePtr() int {
	return int(binary.LittleEndian.Uint16(h.Data[heapOffsetFreeSpace : heapOffsetFreeSpace+2]))
}

func (h *HeapPage) putFreeSpace(off int) {
	binary.LittleEndian.PutUint16(h.Data[heapOffsetFreeSpace:heapOffsetFreeSpace+2], uint16(off))
}

func (h *HeapPage) slotOffset(slot uint32) int {
	return heapHeaderSize + int(slot)*heapSlotSize
}

func (h *HeapPage) readSlot(slot uint32) (tupleOffset int, size uint16, tombstone bool) {
	o := h.slotOffset(slot)
	tupleOffset = int(binary.LittleEndian.Uint16(h.Data[o : o+2]))
	raw := binary.LittleEndian.Uint16(h.Data[o+2 : o+4])
	tombstone = raw&heapTombstoneBit != 0
	size = raw & heapSizeMask
	return
}

func (h *HeapPage) writeSlot(slot uint32, tupleOffset int, size uint16, tombstone bool) {
	o := h.slotOffset(slot)
	binary.LittleEndian.PutUint16(h.Data[o:o+2], uint16(tupleOffset))
	raw := size & heapSizeMask
	if tombstone {
		raw |= heapTombstoneBit
	}
	binary.LittleEndian.PutUint16(h.Data[o+2:o+4], raw)
}

// FreeSpace reports the number of unused bytes remaining between the end
// of the slot directory and the start of tuple data.
func (h *HeapPage) FreeSpace() int {
	dirEnd := heapHeaderSize + int(h.SlotCount())*heapSlotSize
	return h.freeSpacePtr() - dirEnd
}

// InsertTuple appends data as a new tuple, reusing an applied-deleted
// (zero-size, tombstoned) slot when one exists; mark-deleted slots are
// never reused. Returns the slot number and false if the page has no room.
func (h *HeapPage) InsertTuple(data []byte) (uint32, bool) {
	needed := len(data)
	for slot := uint32(0); slot < h.SlotCount(); slot++ {
		_, size, tomb := h.readSlot(slot)
		if tomb && size == 0 {
			if h.FreeSpace() < needed {
				return 0, false
			}
			newOff := h.freeSpacePtr() - needed
			copy(h.Data[newOff:newOff+needed], data)
			h.putFreeSpace(newOff)
			h.writeSlot(slot, newOff, uint16(needed), false)
			return slot, true
		}
	}
	if h.FreeSpace() < needed+heapSlotSize {
		return 0, false
	}
	newOff := h.freeSpacePtr() - needed
	copy(h.Data[newOff:newOff+needed], data)
	h.putFreeSpace(newOff)
	slot := h.SlotCount()
	h.putSlotCount(slot + 1)
	h.writeSlot(slot, newOff, uint16(needed), false)
	return slot, true
}

// GetTuple returns the bytes stored at slot, or ok=false if the slot is
// out of range or tombstoned (mark-deleted or applied-deleted).
func (h *HeapPage) GetTuple(slot uint32) ([]byte, bool) {
	if slot >= h.SlotCount() {
		return nil, false
	}
	off, size, tomb := h.readSlot(slot)
	if tomb {
		return nil, false
	}
	out := make([]byte, size)
	copy(out, h.Data[off:off+int(size)])
	return out, true
}

// IsDeleted reports whether slot currently carries a tombstone (either
// marked for delete by an uncommitted transaction or already applied).
func (h *HeapPage) IsDeleted(slot uint32) bool {
	if slot >= h.SlotCount() {
		return true
	}
	_, _, tomb := h.readSlot(slot)
	return tomb
}

// MarkDelete tombstones slot without reclaiming its bytes, so an abort can
// call RollbackDelete to restore it (spec.md §4.6, ARIES undo of INSERT
// vs. MARKDELETE are each other's inverse).
func (h *HeapPage) MarkDelete(slot uint32) bool {
	if slot >= h.SlotCount() {
		return false
	}
	off, size, tomb := h.readSlot(slot)
	if tomb {
		return false
	}
	h.writeSlot(slot, off, size, true)
	return true
}

// RollbackDelete reverses a prior MarkDelete.
func (h *HeapPage) RollbackDelete(slot uint32) bool {
	if slot >= h.SlotCount() {
		return false
	}
	off, size, tomb := h.readSlot(slot)
	if !tomb || size == 0 {
		return false
	}
	h.writeSlot(slot, off, size, false)
	return true
}

// ApplyDelete permanently discards a tombstoned slot's bytes on commit.
// The slot itself stays allocated (zero size, tombstoned) so later
// InsertTuple calls can recycle it.
func (h *HeapPage) ApplyDelete(slot uint32) bool {
	if slot >= h.SlotCount() {
		return false
	}
	_, _, tomb := h.readSlot(slot)
	if !tomb {
		return false
	}
	h.writeSlot(slot, 0, 0, true)
	return true
}

// InsertAt writes data at a specific slot number rather than the next
// free one, extending the slot directory with tombstoned filler slots if
// necessary. Used only by recovery redo, which must reproduce a tuple at
// exactly the RID a log record names rather than wherever InsertTuple
// would place it now.
func (h *HeapPage) InsertAt(slot uint32, data []byte) bool {
	needed := len(data)
	newSlots := 0
	if slot >= h.SlotCount() {
		newSlots = int(slot + 1 - h.SlotCount())
	}
	if h.FreeSpace() < needed+newSlots*heapSlotSize {
		return false
	}
	for h.SlotCount() <= slot {
		n := h.SlotCount()
		h.writeSlot(n, 0, 0, true)
		h.putSlotCount(n + 1)
	}
	newOff := h.freeSpacePtr() - needed
	copy(h.Data[newOff:newOff+needed], data)
	h.putFreeSpace(newOff)
	h.writeSlot(slot, newOff, uint16(needed), false)
	return true
}

// UpdateTuple overwrites slot's bytes in place when the new value is no
// larger than the old one; otherwise it returns ok=false and leaves the
// slot untouched, so callers fall back to delete-then-insert (which is
// how spec.md's UPDATE log record records an in-place old/new image pair
// only for the in-place case and an INSERT+MARKDELETE pair otherwise).
func (h *HeapPage) UpdateTuple(slot uint32, data []byte) (old []byte, ok bool) {
	if slot >= h.SlotCount() {
		return nil, false
	}
	off, size, tomb := h.readSlot(slot)
	if tomb || len(data) > int(size) {
		return nil, false
	}
	old = make([]byte, size)
	copy(old, h.Data[off:off+int(size)])
	copy(h.Data[off:off+len(data)], data)
	h.writeSlot(slot, off, uint16(len(data)), false)
	return old, true
}

// Package page defines the raw byte layouts the buffer pool moves in and
// out of frames: the generic frame payload, the table-heap page, the
// hash-join scratch page, and the hash-table header/block pages (spec.md
// §3/§4.4). Every layout keeps the same 8-byte prefix — page id then
// page LSN — so a caller holding nothing but a []byte can always find a
// page's identity and its LSN, per spec.md §6 ("header (page-id, LSN) is
// the first 8 bytes").
package page

import (
	"encoding/binary"
	"sync"

	"corestore/internal/types"
)

// Size is the fixed page size in bytes. It mirrors the teacher's
// storage_engine/page.PageSize / heapfile_manager.PageSize constants.
// It is compiled in: internal/config.Config.PageSize is not consulted,
// and every Page buffer is allocated at this size.
const Size = 4096

const (
	offsetPageID = 0
	offsetLSN    = 4
	// HeaderSize is the length of the common page-id/LSN prefix every page
	// layout in this package reserves before its own type-specific header.
	HeaderSize = 8
)

// Page is a frame's payload: the raw bytes plus the bookkeeping the buffer
// pool needs (pin count, dirty flag) and the per-page latch callers must
// hold while reading or writing Data. Grounded on
// storage_engine/page/page.go, generalized with the fixed page-id/LSN
// prefix spec.md §3/§6 requires of every page layout, not just heap pages.
type Page struct {
	Data     []byte
	ID       types.PageID
	PinCount int32
	IsDirty  bool

	mu sync.RWMutex
}

// New allocates a zeroed page of the given id.
func New(id types.PageID) *Page {
	p := &Page{
		Data: make([]byte, Size),
		ID:   id,
	}
	putPageID(p.Data, id)
	return p
}

// Reset zeroes the page in place, re-stamps its id, and clears its pin
// count and dirty flag. The buffer pool does not call it: NewPage seats a
// freshly allocated Page instead.
func (p *Page) Reset(id types.PageID) {
	for i := range p.Data {
		p.Data[i] = 0
	}
	p.ID = id
	p.PinCount = 0
	p.IsDirty = false
	putPageID(p.Data, id)
}

// LSN returns the page's stamped LSN (the "page-LSN" of spec.md §3).
func (p *Page) LSN() types.LSN { return getLSN(p.Data) }

// SetLSN stamps a new page-LSN. Invariant (spec.md §3): a page's LSN is
// monotone non-decreasing; callers (internal/heap, internal/recovery)
// are responsible for only calling this with LSNs
// greater than or equal to the current one.
func (p *Page) SetLSN(lsn types.LSN) { putLSN(p.Data, lsn) }

func (p *Page) Lock()    { p.mu.Lock() }
func (p *Page) Unlock()  { p.mu.Unlock() }
func (p *Page) RLock()   { p.mu.RLock() }
func (p *Page) RUnlock() { p.mu.RUnlock() }

func putPageID(data []byte, id types.PageID) {
	binary.LittleEndian.PutUint32(data[offsetPageID:offsetPageID+4], uint32(id))
}

func getPageID(data []byte) types.PageID {
	return types.PageID(binary.LittleEndian.Uint32(data[offsetPageID : offsetPageID+4]))
}

func putLSN(data []byte, lsn types.LSN) {
	binary.LittleEndian.PutUint32(data[offsetLSN:offsetLSN+4], uint32(lsn))
}

func getLSN(data []byte) types.LSN {
	return types.LSN(binary.LittleEndian.Uint32(data[offsetLSN : offsetLSN+4]))
}

// ReadID reads the page id out of a raw page buffer without going through
// a Page.
func ReadID(data []byte) types.PageID { return getPageID(data) }

// ReadLSN reads the page LSN out of a raw page buffer without going
// through a Page.
func ReadLSN(data []byte) types.LSN { return getLSN(data) }

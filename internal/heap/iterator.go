package heap

import (
	"corestore/internal/page"
	"corestore/internal/types"
)

// Iterator walks every live (non-tombstoned) tuple in a table heap in
// page-chain order, the consumer contract spec.md's sequential scan
// operator (C8) is built on. Grounded on heapfile_manager's
// GetAllRowPointers, but walking the NextPageID chain a page at a time
// instead of iterating a flat 0..TotalPages range, since this heap's
// pages are not guaranteed to occupy a contiguous PageID range.
type Iterator struct {
	table  *Table
	pageID types.PageID
	page   *page.HeapPage
	slot   uint32
	done   bool
}

// Iterator returns a fresh scan positioned before the heap's first tuple.
func (t *Table) Iterator() *Iterator {
	return &Iterator{table: t, pageID: t.firstID}
}

// Next advances to the next live tuple, returning its rid and bytes. It
// returns ok=false once the scan is exhausted.
func (it *Iterator) Next() (rid types.RID, data []byte, ok bool) {
	if it.done {
		return types.RID{}, nil, false
	}

	for {
		if it.page == nil {
			if it.pageID == types.InvalidPageID {
				it.done = true
				return types.RID{}, nil, false
			}
			pg, err := it.table.bp.FetchPage(it.pageID)
			if err != nil {
				it.done = true
				return types.RID{}, nil, false
			}
			it.page = page.WrapHeapPage(pg)
			it.slot = 0
		}

		for it.slot < it.page.SlotCount() {
			slot := it.slot
			it.slot++
			if data, ok := it.page.GetTuple(slot); ok {
				return types.RID{PageID: it.page.ID, SlotNum: slot}, data, true
			}
		}

		next := it.page.NextPageID()
		it.table.bp.UnpinPage(it.page.ID, false)
		it.page = nil
		it.pageID = next
	}
}

// Close releases the page currently pinned by the iterator, if any. Safe
// to call multiple times; callers that fully drain Next need not call it.
func (it *Iterator) Close() {
	if it.page != nil {
		it.table.bp.UnpinPage(it.page.ID, false)
		it.page = nil
	}
	it.done = true
}

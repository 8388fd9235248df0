// Package heap implements table-heap storage: a singly-linked chain of
// heap pages, insert/update/delete routed through the write-ahead log,
// and a forward iterator for sequential scan (C8's consumer contract).
// Grounded on heapfile_manager/{struct.go,page_header.go,slots.go,
// row_ops_internal.go} for the insert/get/delete/scan shape
// (findSuitablePage-then-insert, GetAllRowPointers's full-table walk,
// tombstone-then-skip deletes) but replacing that package's un-logged
// mutation with one where every change is first appended to
// internal/wal through internal/txn, and the page-chain traversal
// (heapfile_manager has none — it scans by raw page number 0..TotalPages)
// with an explicit prev/next page-id chain the way BusTub's TablePage
// links its pages, since the corrected header-page layout (see
// internal/page) makes recovering PageID range assumptions unsafe.
package heap

import (
	"fmt"
	"sync"

	"corestore/internal/buffer"
	"corestore/internal/logging"
	"corestore/internal/page"
	"corestore/internal/tuple"
	"corestore/internal/txn"
	"corestore/internal/types"
	"corestore/internal/wal"
)

var log = logging.Component("heap")

// Table is a table heap: a chain of pages linked head to tail, each
// holding a slotted array of tuples.
type Table struct {
	bp      *buffer.Manager
	txns    *txn.Manager
	mu      sync.Mutex
	firstID types.PageID
	lastID  types.PageID
}

// Create allocates the heap's first page and returns a Table over it.
func Create(bp *buffer.Manager, txns *txn.Manager, t *txn.Transaction) (*Table, error) {
	pg, err := bp.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create heap: %w", err)
	}
	lsn := txns.Append(t, &wal.Record{Type: wal.RecordNewPage, PrevPageID: types.InvalidPageID, PageID: pg.ID})
	pg.SetLSN(lsn)

	hp := page.WrapHeapPage(pg)
	hp.Init(types.InvalidPageID)
	bp.UnpinPage(pg.ID, true)

	return &Table{bp: bp, txns: txns, firstID: pg.ID, lastID: pg.ID}, nil
}

// Open reattaches to an existing heap by its first page id. lastID is
// discovered lazily the first time an insert needs to append a page.
func Open(bp *buffer.Manager, txns *txn.Manager, firstID types.PageID) *Table {
	return &Table{bp: bp, txns: txns, firstID: firstID, lastID: firstID}
}

func (t *Table) FirstPageID() types.PageID { return t.firstID }

// InsertTuple appends data to the heap, growing the page chain if the
// current tail page has no room, and returns the tuple's location.
func (t *Table) InsertTuple(txnHandle *txn.Transaction, data []byte) (types.RID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		pg, err := t.bp.FetchPage(t.lastID)
		if err != nil {
			return types.RID{}, fmt.Errorf("insert tuple: fetch tail page %d: %w", t.lastID, err)
		}
		hp := page.WrapHeapPage(pg)

		slot, ok := hp.InsertTuple(data)
		if ok {
			rid := types.RID{PageID: pg.ID, SlotNum: slot}
			lsn := t.txns.Append(txnHandle, &wal.Record{Type: wal.RecordInsert, RID: rid, Tuple: tuple.Tuple(data)})
			pg.SetLSN(lsn)
			t.bp.UnpinPage(pg.ID, true)
			return rid, nil
		}
		t.bp.UnpinPage(pg.ID, false)

		if err := t.growChainLocked(txnHandle, pg.ID); err != nil {
			return types.RID{}, err
		}
	}
}

// growChainLocked allocates a new tail page after tailID and links it in.
func (t *Table) growChainLocked(txnHandle *txn.Transaction, tailID types.PageID) error {
	newPg, err := t.bp.NewPage()
	if err != nil {
		return fmt.Errorf("insert tuple: allocate new page: %w", err)
	}
	lsn := t.txns.Append(txnHandle, &wal.Record{Type: wal.RecordNewPage, PrevPageID: tailID, PageID: newPg.ID})
	newPg.SetLSN(lsn)

	newHp := page.WrapHeapPage(newPg)
	newHp.Init(tailID)
	t.bp.UnpinPage(newPg.ID, true)

	tailPg, err := t.bp.FetchPage(tailID)
	if err != nil {
		return fmt.Errorf("insert tuple: relink tail page %d: %w", tailID, err)
	}
	page.WrapHeapPage(tailPg).SetNextPageID(newPg.ID)
	t.bp.UnpinPage(tailID, true)

	t.lastID = newPg.ID
	return nil
}

// GetTuple returns the bytes stored at rid.
func (t *Table) GetTuple(rid types.RID) ([]byte, error) {
	pg, err := t.bp.FetchPage(rid.PageID)
	if err != nil {
		return nil, fmt.Errorf("get tuple %s: %w", rid, err)
	}
	defer t.bp.UnpinPage(rid.PageID, false)

	data, ok := page.WrapHeapPage(pg).GetTuple(rid.SlotNum)
	if !ok {
		return nil, fmt.Errorf("get tuple %s: slot is empty or deleted", rid)
	}
	return data, nil
}

// MarkDelete tombstones rid without reclaiming its bytes.
func (t *Table) MarkDelete(txnHandle *txn.Transaction, rid types.RID) error {
	return t.mutate(rid, func(hp *page.HeapPage) (tuple.Tuple, bool) {
		data, _ := hp.GetTuple(rid.SlotNum)
		return tuple.Tuple(data), hp.MarkDelete(rid.SlotNum)
	}, func(img tuple.Tuple) *wal.Record {
		return &wal.Record{Type: wal.RecordMarkDelete, RID: rid, Tuple: img}
	}, txnHandle)
}

// ApplyDelete permanently discards a tombstoned slot's bytes, called once
// the deleting transaction commits.
func (t *Table) ApplyDelete(txnHandle *txn.Transaction, rid types.RID) error {
	return t.mutate(rid, func(hp *page.HeapPage) (tuple.Tuple, bool) {
		data, _ := hp.GetTuple(rid.SlotNum) // already tombstoned; last chance to log the image
		if data == nil {
			data = []byte{}
		}
		return tuple.Tuple(data), hp.ApplyDelete(rid.SlotNum)
	}, func(img tuple.Tuple) *wal.Record {
		return &wal.Record{Type: wal.RecordApplyDelete, RID: rid, Tuple: img}
	}, txnHandle)
}

// RollbackDelete reverses a prior MarkDelete.
func (t *Table) RollbackDelete(txnHandle *txn.Transaction, rid types.RID) error {
	return t.mutate(rid, func(hp *page.HeapPage) (tuple.Tuple, bool) {
		return nil, hp.RollbackDelete(rid.SlotNum)
	}, func(img tuple.Tuple) *wal.Record {
		return &wal.Record{Type: wal.RecordRollbackDelete, RID: rid}
	}, txnHandle)
}

func (t *Table) mutate(rid types.RID, apply func(*page.HeapPage) (tuple.Tuple, bool), record func(tuple.Tuple) *wal.Record, txnHandle *txn.Transaction) error {
	pg, err := t.bp.FetchPage(rid.PageID)
	if err != nil {
		return fmt.Errorf("mutate %s: %w", rid, err)
	}
	hp := page.WrapHeapPage(pg)
	img, ok := apply(hp)
	if !ok {
		t.bp.UnpinPage(rid.PageID, false)
		return fmt.Errorf("mutate %s: operation rejected by page", rid)
	}
	lsn := t.txns.Append(txnHandle, record(img))
	pg.SetLSN(lsn)
	t.bp.UnpinPage(rid.PageID, true)
	return nil
}

// UpdateTuple overwrites rid's bytes in place when the new value fits in
// the old slot; otherwise it returns ok=false so the caller can fall back
// to MarkDelete+InsertTuple.
func (t *Table) UpdateTuple(txnHandle *txn.Transaction, rid types.RID, newData []byte) (ok bool, err error) {
	pg, err := t.bp.FetchPage(rid.PageID)
	if err != nil {
		return false, fmt.Errorf("update tuple %s: %w", rid, err)
	}
	hp := page.WrapHeapPage(pg)
	old, updated := hp.UpdateTuple(rid.SlotNum, newData)
	if !updated {
		t.bp.UnpinPage(rid.PageID, false)
		return false, nil
	}
	lsn := t.txns.Append(txnHandle, &wal.Record{
		Type: wal.RecordUpdate, RID: rid,
		OldTuple: tuple.Tuple(old), NewTuple: tuple.Tuple(newData),
	})
	pg.SetLSN(lsn)
	t.bp.UnpinPage(rid.PageID, true)
	return true, nil
}

package recovery

import (
	"corestore/internal/buffer"
	"corestore/internal/disk"
	"corestore/internal/page"
	"corestore/internal/types"
	"corestore/internal/wal"
)

// Manager drives the redo-then-undo recovery algorithm over a disk
// manager's log, grounded on
// original_source/src/recovery/log_recovery.cpp's Redo/Undo.
type Manager struct {
	disk *disk.Manager
	bp   *buffer.Manager
}

func New(d *disk.Manager, bp *buffer.Manager) *Manager {
	return &Manager{disk: d, bp: bp}
}

type logEntry struct {
	rec    *wal.Record
	offset int
}

// Recover replays the log in full. It returns the highest LSN it
// observed, which callers thread into the log manager's next-LSN
// counter.
func (m *Manager) Recover() (types.LSN, error) {
	return m.RecoverFrom(0)
}

// RecoverFrom replays only the portion of the log starting at byte
// offset startOffset, skipping the prefix a checkpoint already covers.
// A checkpoint is only ever taken while quiescent (engine.Close, after
// FlushAllPages with no transactions in flight), so everything before it
// is guaranteed durable on both the data file and the log: there is
// nothing left to redo or undo in that prefix. startOffset=0 behaves
// exactly like Recover, scanning the whole log.
func (m *Manager) RecoverFrom(startOffset int64) (types.LSN, error) {
	raw, err := m.disk.ReadLog()
	if err != nil {
		return types.InvalidLSN, err
	}
	if startOffset < 0 || startOffset > int64(len(raw)) {
		startOffset = 0
	}

	entries, maxPageID, maxLSN := m.scan(raw[startOffset:], startOffset)
	activeTxn := m.redo(entries)
	if err := m.undo(entries, activeTxn); err != nil {
		return types.InvalidLSN, err
	}

	m.disk.SetNextPageID(maxPageID + 1)
	log.WithField("records", len(entries)).WithField("activeTxns", len(activeTxn)).
		WithField("startOffset", startOffset).Info("recovery complete")
	return maxLSN, nil
}

// scan deserializes every complete record in raw, in order, stopping at
// the first torn record (a partial write from a crash mid-append) rather
// than treating it as corruption. baseOffset is added to each record's
// in-buffer position to recover its true byte offset in the log file
// when raw is itself a suffix (RecoverFrom's checkpoint skip).
func (m *Manager) scan(raw []byte, baseOffset int64) ([]logEntry, types.PageID, types.LSN) {
	var entries []logEntry
	maxPageID := types.PageID(0)
	maxLSN := types.InvalidLSN

	offset := 0
	for offset < len(raw) {
		rec, ok := wal.Decode(raw[offset:])
		if !ok {
			break
		}
		entries = append(entries, logEntry{rec: rec, offset: int(baseOffset) + offset})
		offset += rec.Size()

		if rec.LSN > maxLSN {
			maxLSN = rec.LSN
		}
		if rec.RID.PageID > maxPageID {
			maxPageID = rec.RID.PageID
		}
		if rec.Type == wal.RecordNewPage && rec.PageID > maxPageID {
			maxPageID = rec.PageID
		}
	}
	return entries, maxPageID, maxLSN
}

// redo replays every record whose target page's on-disk LSN predates it,
// and returns the set of transactions still open at the end of the log
// (the active-transaction table Undo needs).
func (m *Manager) redo(entries []logEntry) map[types.TxnID]int {
	activeTxn := make(map[types.TxnID]int) // txnID -> index into entries of its last record

	for i, e := range entries {
		rec := e.rec
		activeTxn[rec.TxnID] = i

		switch rec.Type {
		case wal.RecordInsert:
			m.withHeapPage(rec.RID.PageID, rec.LSN, func(hp *page.HeapPage) {
				hp.InsertAt(rec.RID.SlotNum, rec.Tuple)
			})
		case wal.RecordUpdate:
			m.withHeapPage(rec.RID.PageID, rec.LSN, func(hp *page.HeapPage) {
				hp.UpdateTuple(rec.RID.SlotNum, rec.NewTuple)
			})
		case wal.RecordMarkDelete:
			m.withHeapPage(rec.RID.PageID, rec.LSN, func(hp *page.HeapPage) {
				hp.MarkDelete(rec.RID.SlotNum)
			})
		case wal.RecordApplyDelete:
			m.withHeapPage(rec.RID.PageID, rec.LSN, func(hp *page.HeapPage) {
				hp.ApplyDelete(rec.RID.SlotNum)
			})
		case wal.RecordRollbackDelete:
			m.withHeapPage(rec.RID.PageID, rec.LSN, func(hp *page.HeapPage) {
				hp.RollbackDelete(rec.RID.SlotNum)
			})
		case wal.RecordNewPage:
			m.redoNewPage(rec)
		case wal.RecordCommit, wal.RecordAbort:
			delete(activeTxn, rec.TxnID)
		}
	}
	return activeTxn
}

// withHeapPage fetches pageID, applies fn only if the page's stamped LSN
// predates lsn (meaning this change never made it to disk), stamps the
// new LSN when it does, and unpins with the correct dirty flag.
func (m *Manager) withHeapPage(pageID types.PageID, lsn types.LSN, fn func(hp *page.HeapPage)) {
	pg, err := m.bp.FetchPage(pageID)
	if err != nil {
		log.WithField("pageID", pageID).WithError(err).Warn("redo: could not fetch page")
		return
	}
	hp := page.WrapHeapPage(pg)
	applied := pg.LSN() < lsn
	if applied {
		fn(hp)
		pg.SetLSN(lsn)
	}
	m.bp.UnpinPage(pageID, applied)
}

func (m *Manager) redoNewPage(rec *wal.Record) {
	pg, err := m.bp.FetchPage(rec.PageID)
	if err != nil {
		log.WithField("pageID", rec.PageID).WithError(err).Warn("redo: could not fetch new page")
		return
	}
	// A page that never reached the data file reads back zero-filled, so
	// its LSN is 0, which is also the first LSN the log manager assigns;
	// <= lets a NEWPAGE logged at LSN 0 still format such a page.
	if pg.LSN() <= rec.LSN {
		hp := page.WrapHeapPage(pg)
		hp.Init(rec.PrevPageID)
		pg.SetLSN(rec.LSN)
	}
	dirtyThisPage := pg.LSN() == rec.LSN
	m.bp.UnpinPage(rec.PageID, dirtyThisPage)

	if rec.PrevPageID == types.InvalidPageID {
		return
	}
	prevPg, err := m.bp.FetchPage(rec.PrevPageID)
	if err != nil {
		log.WithField("pageID", rec.PrevPageID).WithError(err).Warn("redo: could not fetch predecessor page")
		return
	}
	prevHp := page.WrapHeapPage(prevPg)
	if prevHp.NextPageID() != rec.PageID {
		prevHp.SetNextPageID(rec.PageID)
		m.bp.UnpinPage(rec.PrevPageID, true)
	} else {
		m.bp.UnpinPage(rec.PrevPageID, false)
	}
}

// undo walks each still-active transaction's PrevLSN chain backward,
// applying the inverse of every operation it logged.
func (m *Manager) undo(entries []logEntry, activeTxn map[types.TxnID]int) error {
	byLSN := make(map[types.LSN]int, len(entries))
	for i, e := range entries {
		byLSN[e.rec.LSN] = i
	}

	for _, lastIdx := range activeTxn {
		idx := lastIdx
		for {
			rec := entries[idx].rec

			switch rec.Type {
			case wal.RecordInsert:
				// ApplyDelete only discards a tombstoned slot, so the live
				// inserted tuple is tombstoned first.
				m.withHeapPageUnconditional(rec.RID.PageID, func(hp *page.HeapPage) {
					hp.MarkDelete(rec.RID.SlotNum)
					hp.ApplyDelete(rec.RID.SlotNum)
				})
			case wal.RecordUpdate:
				m.withHeapPageUnconditional(rec.RID.PageID, func(hp *page.HeapPage) {
					hp.UpdateTuple(rec.RID.SlotNum, rec.OldTuple)
				})
			case wal.RecordMarkDelete:
				m.withHeapPageUnconditional(rec.RID.PageID, func(hp *page.HeapPage) {
					hp.RollbackDelete(rec.RID.SlotNum)
				})
			case wal.RecordApplyDelete:
				m.withHeapPageUnconditional(rec.RID.PageID, func(hp *page.HeapPage) {
					hp.InsertAt(rec.RID.SlotNum, rec.Tuple)
				})
			case wal.RecordRollbackDelete:
				m.withHeapPageUnconditional(rec.RID.PageID, func(hp *page.HeapPage) {
					hp.MarkDelete(rec.RID.SlotNum)
				})
			}

			if rec.PrevLSN == types.InvalidLSN {
				break
			}
			next, ok := byLSN[rec.PrevLSN]
			if !ok {
				break
			}
			idx = next
		}
	}
	return nil
}

func (m *Manager) withHeapPageUnconditional(pageID types.PageID, fn func(hp *page.HeapPage)) {
	pg, err := m.bp.FetchPage(pageID)
	if err != nil {
		log.WithField("pageID", pageID).WithError(err).Warn("undo: could not fetch page")
		return
	}
	fn(page.WrapHeapPage(pg))
	m.bp.UnpinPage(pageID, true)
}

package recovery

import (
	"path/filepath"
	"testing"
	"time"

	"corestore/internal/buffer"
	"corestore/internal/disk"
	"corestore/internal/page"
	"corestore/internal/types"
	"corestore/internal/wal"
)

func openAll(t *testing.T, dataPath, logPath string) (*disk.Manager, *buffer.Manager, *wal.Manager) {
	t.Helper()
	d, err := disk.New(dataPath, logPath)
	if err != nil {
		t.Fatalf("disk.New: %v", err)
	}
	bp := buffer.New(16, d)
	lm := wal.New(d, 4096, time.Second)
	bp.SetWAL(lm)
	lm.Run()
	return d, bp, lm
}

// TestRedoReplaysUnflushedInsert simulates a crash where an INSERT was
// logged and flushed to the log file but the buffer pool's dirty page
// never made it to the data file: recovery must reproduce the insert.
func TestRedoReplaysUnflushedInsert(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.db")
	logPath := filepath.Join(dir, "log.wal")

	d, bp, lm := openAll(t, dataPath, logPath)

	pg, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	newPageLSN := lm.Append(&wal.Record{Type: wal.RecordNewPage, TxnID: 1, PrevLSN: types.InvalidLSN,
		PrevPageID: types.InvalidPageID, PageID: pg.ID})
	pg.SetLSN(newPageLSN)

	hp := page.WrapHeapPage(pg)
	hp.Init(types.InvalidPageID)
	slot, ok := hp.InsertTuple([]byte("committed-row"))
	if !ok {
		t.Fatalf("InsertTuple failed")
	}
	rid := types.RID{PageID: pg.ID, SlotNum: slot}

	rec := &wal.Record{Type: wal.RecordInsert, TxnID: 1, PrevLSN: newPageLSN, RID: rid, Tuple: []byte("committed-row")}
	lsn := lm.Append(rec)
	pg.SetLSN(lsn)
	lm.Append(&wal.Record{Type: wal.RecordCommit, TxnID: 1, PrevLSN: lsn})
	lm.Flush()

	// Simulate the crash: drop the buffer pool without flushing the data
	// page, so the data file never sees the insert, only the log does.
	if err := d.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	d2, err := disk.New(dataPath, logPath)
	if err != nil {
		t.Fatalf("reopen disk: %v", err)
	}
	defer d2.Shutdown()
	bp2 := buffer.New(16, d2)

	rm := New(d2, bp2)
	if _, err := rm.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	got, err := bp2.FetchPage(pg.ID)
	if err != nil {
		t.Fatalf("FetchPage after recovery: %v", err)
	}
	hp2 := page.WrapHeapPage(got)
	tup, ok := hp2.GetTuple(slot)
	if !ok {
		t.Fatalf("expected the redone tuple to be readable")
	}
	if string(tup) != "committed-row" {
		t.Fatalf("recovered tuple = %q, want %q", tup, "committed-row")
	}
}

// TestUndoRollsBackUncommittedInsert simulates a crash after an INSERT
// was logged but before its transaction ever committed: recovery must
// undo it (ApplyDelete), leaving the slot unreadable.
func TestUndoRollsBackUncommittedInsert(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.db")
	logPath := filepath.Join(dir, "log.wal")

	d, bp, lm := openAll(t, dataPath, logPath)

	pg, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	newPageLSN := lm.Append(&wal.Record{Type: wal.RecordNewPage, TxnID: 2, PrevLSN: types.InvalidLSN,
		PrevPageID: types.InvalidPageID, PageID: pg.ID})
	pg.SetLSN(newPageLSN)

	hp := page.WrapHeapPage(pg)
	hp.Init(types.InvalidPageID)
	slot, ok := hp.InsertTuple([]byte("uncommitted-row"))
	if !ok {
		t.Fatalf("InsertTuple failed")
	}
	rid := types.RID{PageID: pg.ID, SlotNum: slot}

	rec := &wal.Record{Type: wal.RecordInsert, TxnID: 2, PrevLSN: newPageLSN, RID: rid, Tuple: []byte("uncommitted-row")}
	lsn := lm.Append(rec)
	pg.SetLSN(lsn)
	lm.Flush()
	// No COMMIT record: transaction 2 is a loser at crash time.

	if err := d.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	d2, err := disk.New(dataPath, logPath)
	if err != nil {
		t.Fatalf("reopen disk: %v", err)
	}
	defer d2.Shutdown()
	bp2 := buffer.New(16, d2)

	rm := New(d2, bp2)
	if _, err := rm.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	got, err := bp2.FetchPage(pg.ID)
	if err != nil {
		t.Fatalf("FetchPage after recovery: %v", err)
	}
	hp2 := page.WrapHeapPage(got)
	if _, ok := hp2.GetTuple(slot); ok {
		t.Fatalf("expected the uncommitted insert to be undone")
	}
}

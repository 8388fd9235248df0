package heap

import (
	"path/filepath"
	"testing"
	"time"

	"corestore/internal/buffer"
	"corestore/internal/disk"
	"corestore/internal/txn"
	"corestore/internal/wal"
)

func newTestHeap(t *testing.T, capacity int) (*Table, *txn.Manager) {
	t.Helper()
	dir := t.TempDir()
	d, err := disk.New(filepath.Join(dir, "data.db"), filepath.Join(dir, "log.wal"))
	if err != nil {
		t.Fatalf("disk.New: %v", err)
	}
	t.Cleanup(func() { d.Shutdown() })

	bp := buffer.New(capacity, d)
	lm := wal.New(d, 4096, time.Second)
	bp.SetWAL(lm)
	lm.Run()
	t.Cleanup(lm.Stop)

	txns := txn.New(lm)
	tx := txns.Begin()
	table, err := Create(bp, txns, tx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return table, txns
}

func TestInsertThenGetTupleRoundTrips(t *testing.T) {
	table, txns := newTestHeap(t, 8)
	tx := txns.Begin()

	rid, err := table.InsertTuple(tx, []byte("row one"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := table.GetTuple(rid)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if string(got) != "row one" {
		t.Fatalf("GetTuple = %q, want %q", got, "row one")
	}
}

func TestInsertGrowsPageChainWhenFull(t *testing.T) {
	table, txns := newTestHeap(t, 8)
	tx := txns.Begin()

	big := make([]byte, 900)
	for i := range big {
		big[i] = byte(i)
	}

	for i := 0; i < 8; i++ {
		if _, err := table.InsertTuple(tx, big); err != nil {
			t.Fatalf("InsertTuple #%d: %v", i, err)
		}
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if table.lastID == table.firstID {
		t.Fatalf("expected the page chain to have grown past the first page")
	}
}

func TestMarkDeleteThenGetTupleFails(t *testing.T) {
	table, txns := newTestHeap(t, 8)
	tx := txns.Begin()

	rid, err := table.InsertTuple(tx, []byte("to be deleted"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := table.MarkDelete(tx, rid); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := table.GetTuple(rid); err == nil {
		t.Fatalf("expected GetTuple to fail after MarkDelete")
	}
}

func TestRollbackDeleteRestoresTuple(t *testing.T) {
	table, txns := newTestHeap(t, 8)
	tx := txns.Begin()

	rid, err := table.InsertTuple(tx, []byte("survives abort"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx2 := txns.Begin()
	if err := table.MarkDelete(tx2, rid); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}
	if err := table.RollbackDelete(tx2, rid); err != nil {
		t.Fatalf("RollbackDelete: %v", err)
	}
	if err := txns.Commit(tx2); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := table.GetTuple(rid)
	if err != nil {
		t.Fatalf("GetTuple after rollback: %v", err)
	}
	if string(got) != "survives abort" {
		t.Fatalf("GetTuple = %q, want %q", got, "survives abort")
	}
}

func TestUpdateTupleInPlaceWhenItFits(t *testing.T) {
	table, txns := newTestHeap(t, 8)
	tx := txns.Begin()

	rid, err := table.InsertTuple(tx, []byte("original value"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	ok, err := table.UpdateTuple(tx, rid, []byte("shorter"))
	if err != nil {
		t.Fatalf("UpdateTuple: %v", err)
	}
	if !ok {
		t.Fatalf("expected in-place update to succeed for a shorter value")
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := table.GetTuple(rid)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if string(got) != "shorter" {
		t.Fatalf("GetTuple = %q, want %q", got, "shorter")
	}
}

func TestIteratorVisitsEveryLiveTupleAcrossPages(t *testing.T) {
	table, txns := newTestHeap(t, 8)
	tx := txns.Begin()

	big := make([]byte, 900)
	want := make(map[string]bool)
	for i := 0; i < 8; i++ {
		rid, err := table.InsertTuple(tx, big)
		if err != nil {
			t.Fatalf("InsertTuple #%d: %v", i, err)
		}
		want[rid.String()] = true
	}
	deletedRid, err := table.InsertTuple(tx, big)
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := table.MarkDelete(tx, deletedRid); err != nil {
		t.Fatalf("MarkDelete: %v", err)
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	it := table.Iterator()
	got := make(map[string]bool)
	for {
		rid, _, ok := it.Next()
		if !ok {
			break
		}
		got[rid.String()] = true
	}

	if len(got) != len(want) {
		t.Fatalf("iterator visited %d tuples, want %d", len(got), len(want))
	}
	for rid := range want {
		if !got[rid] {
			t.Fatalf("iterator missed rid %s", rid)
		}
	}
	if got[deletedRid.String()] {
		t.Fatalf("iterator should skip the tombstoned tuple")
	}
}

func TestUpdateTupleRejectsGrowth(t *testing.T) {
	table, txns := newTestHeap(t, 8)
	tx := txns.Begin()

	rid, err := table.InsertTuple(tx, []byte("small"))
	if err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	ok, err := table.UpdateTuple(tx, rid, []byte("a much longer replacement value"))
	if err != nil {
		t.Fatalf("UpdateTuple: %v", err)
	}
	if ok {
		t.Fatalf("expected in-place update to be rejected when the new value is larger")
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

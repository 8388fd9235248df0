package insert

import (
	"path/filepath"
	"testing"
	"time"

	"corestore/internal/buffer"
	"corestore/internal/disk"
	"corestore/internal/execution"
	"corestore/internal/heap"
	"corestore/internal/tuple"
	"corestore/internal/txn"
	"corestore/internal/wal"
)

func newTestTable(t *testing.T) (*heap.Table, *txn.Manager) {
	t.Helper()
	dir := t.TempDir()
	d, err := disk.New(filepath.Join(dir, "data.db"), filepath.Join(dir, "log.wal"))
	if err != nil {
		t.Fatalf("disk.New: %v", err)
	}
	t.Cleanup(func() { d.Shutdown() })

	bp := buffer.New(16, d)
	lm := wal.New(d, 4096, time.Second)
	bp.SetWAL(lm)
	lm.Run()
	t.Cleanup(lm.Stop)

	txns := txn.New(lm)
	tx := txns.Begin()
	table, err := heap.Create(bp, txns, tx)
	if err != nil {
		t.Fatalf("heap.Create: %v", err)
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return table, txns
}

func TestInsertValuesWritesEveryRow(t *testing.T) {
	table, txns := newTestTable(t)
	tx := txns.Begin()

	op := NewValues(table, tx, []execution.Row{
		{"id": float64(1), "name": "alice"},
		{"id": float64(2), "name": "bob"},
	})
	if err := op.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer op.Close()

	summary, ok, err := op.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if summary["inserted"] != 2 {
		t.Fatalf("inserted = %v, want 2", summary["inserted"])
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	it := table.Iterator()
	defer it.Close()
	count := 0
	for {
		_, data, ok := it.Next()
		if !ok {
			break
		}
		rec, err := tuple.DecodeRecord(data)
		if err != nil {
			t.Fatalf("DecodeRecord: %v", err)
		}
		if _, ok := rec["name"]; !ok {
			t.Fatalf("row missing name column: %+v", rec)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("heap holds %d rows, want 2", count)
	}
}

func TestInsertFromChildOperator(t *testing.T) {
	table, txns := newTestTable(t)
	tx := txns.Begin()

	source := &fakeSource{rows: []execution.Row{{"id": float64(1)}}}
	op := New(table, tx, source)
	if err := op.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer op.Close()

	summary, ok, err := op.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if summary["inserted"] != 1 {
		t.Fatalf("inserted = %v, want 1", summary["inserted"])
	}
	if err := txns.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

type fakeSource struct {
	rows []execution.Row
	pos  int
}

func (f *fakeSource) Init() error { return nil }

func (f *fakeSource) Next() (execution.Row, bool, error) {
	if f.pos >= len(f.rows) {
		return nil, false, nil
	}
	row := f.rows[f.pos]
	f.pos++
	return row, true, nil
}

func (f *fakeSource) Close() {}

package hash

import (
	"path/filepath"
	"testing"

	"corestore/internal/buffer"
	"corestore/internal/disk"
	"corestore/internal/types"
)

func newTestBufferPool(t *testing.T, capacity int) *buffer.Manager {
	t.Helper()
	dir := t.TempDir()
	d, err := disk.New(filepath.Join(dir, "data.db"), filepath.Join(dir, "log.wal"))
	if err != nil {
		t.Fatalf("disk.New: %v", err)
	}
	t.Cleanup(func() { d.Shutdown() })
	return buffer.New(capacity, d)
}

func int64Equal(a, b int64) bool { return a == b }

func TestInsertThenGetValue(t *testing.T) {
	bp := newTestBufferPool(t, 32)
	codec := Int64Codec{}
	tbl, _, err := New[int64](bp, codec, NewHashFunc[int64](codec), int64Equal)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rid := types.RID{PageID: 7, SlotNum: 2}
	if ok, err := tbl.Insert(42, rid); err != nil || !ok {
		t.Fatalf("Insert: ok=%v err=%v", ok, err)
	}

	got, err := tbl.GetValue(42)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if len(got) != 1 || got[0] != rid {
		t.Fatalf("GetValue(42) = %v, want [%v]", got, rid)
	}
}

func TestGetValueMissingKeyIsEmpty(t *testing.T) {
	bp := newTestBufferPool(t, 32)
	codec := Int64Codec{}
	tbl, _, err := New[int64](bp, codec, NewHashFunc[int64](codec), int64Equal)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := tbl.GetValue(99)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetValue(99) = %v, want empty", got)
	}
}

func TestRemoveThenGetValue(t *testing.T) {
	bp := newTestBufferPool(t, 32)
	codec := Int64Codec{}
	tbl, _, err := New[int64](bp, codec, NewHashFunc[int64](codec), int64Equal)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rid := types.RID{PageID: 1, SlotNum: 0}
	if ok, err := tbl.Insert(5, rid); err != nil || !ok {
		t.Fatalf("Insert: ok=%v err=%v", ok, err)
	}
	removed, err := tbl.Remove(5, rid)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatalf("expected Remove to report a removal")
	}

	got, err := tbl.GetValue(5)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetValue after remove = %v, want empty", got)
	}
}

func TestInsertOfExistingPairReturnsFalseAndDoesNotDuplicate(t *testing.T) {
	bp := newTestBufferPool(t, 32)
	codec := Int64Codec{}
	tbl, _, err := New[int64](bp, codec, NewHashFunc[int64](codec), int64Equal)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rid := types.RID{PageID: 1, SlotNum: 1}
	if ok, err := tbl.Insert(1, rid); err != nil || !ok {
		t.Fatalf("first Insert: ok=%v err=%v", ok, err)
	}
	if ok, err := tbl.Insert(1, rid); err != nil || ok {
		t.Fatalf("duplicate Insert: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	got, err := tbl.GetValue(1)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetValue(1) = %v, want exactly one entry", got)
	}
}

func TestInsertBeyondCapacityTriggersResize(t *testing.T) {
	bp := newTestBufferPool(t, 128)
	codec := Int64Codec{}
	tbl, _, err := New[int64](bp, codec, NewHashFunc[int64](codec), int64Equal)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n := int(tbl.slotsPerBlk)*2 + 5
	for i := 0; i < n; i++ {
		rid := types.RID{PageID: types.PageID(i), SlotNum: 0}
		if ok, err := tbl.Insert(int64(i), rid); err != nil || !ok {
			t.Fatalf("Insert(%d): ok=%v err=%v", i, ok, err)
		}
	}

	for i := 0; i < n; i++ {
		got, err := tbl.GetValue(int64(i))
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		if len(got) != 1 || got[0].PageID != types.PageID(i) {
			t.Fatalf("GetValue(%d) = %v, want [{PageID:%d}]", i, got, i)
		}
	}
}

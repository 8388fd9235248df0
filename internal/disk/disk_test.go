package disk

import (
	"path/filepath"
	"testing"

	"corestore/internal/page"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := New(filepath.Join(dir, "data.db"), filepath.Join(dir, "log.wal"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Shutdown() })
	return m
}

func TestReadPageBeyondEOFIsZeroed(t *testing.T) {
	m := newTestManager(t)
	id := m.AllocatePage()

	pg, err := m.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range pg.Data {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 (page never written)", i, b)
		}
	}
}

func TestWritePageThenReadPageRoundTrips(t *testing.T) {
	m := newTestManager(t)
	id := m.AllocatePage()

	pg := page.New(id)
	copy(pg.Data[page.HeaderSize:], []byte("payload with embedded \x00 nul"))
	if err := m.WritePage(pg); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := m.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	want := "payload with embedded \x00 nul"
	if s := string(got.Data[page.HeaderSize : page.HeaderSize+len(want)]); s != want {
		t.Fatalf("round-tripped payload = %q, want %q", s, want)
	}
}

func TestWriteLogThenReadLogRoundTrips(t *testing.T) {
	m := newTestManager(t)

	if err := m.WriteLog([]byte("record-one")); err != nil {
		t.Fatalf("WriteLog: %v", err)
	}
	if err := m.WriteLog([]byte("record-two")); err != nil {
		t.Fatalf("WriteLog: %v", err)
	}

	got, err := m.ReadLog()
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if want := "record-onerecord-two"; string(got) != want {
		t.Fatalf("ReadLog() = %q, want %q", got, want)
	}
}

func TestAllocatePageIsMonotone(t *testing.T) {
	m := newTestManager(t)
	first := m.AllocatePage()
	second := m.AllocatePage()
	if second != first+1 {
		t.Fatalf("second alloc = %d, want %d", second, first+1)
	}
}

func TestReopenRestoresNextPageID(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.db")
	logPath := filepath.Join(dir, "log.wal")

	m1, err := New(dataPath, logPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id := m1.AllocatePage()
	pg := page.New(id)
	if err := m1.WritePage(pg); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := m1.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	m2, err := New(dataPath, logPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Shutdown()

	next := m2.AllocatePage()
	if next <= id {
		t.Fatalf("reopened manager allocated %d, expected something past %d", next, id)
	}
}

package catalog

import (
	"testing"

	"corestore/internal/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func testInfo() TableInfo {
	return TableInfo{
		Schema: TableSchema{
			TableName: "widgets",
			Columns: []ColumnDef{
				{Name: "id", Type: "int", IsPrimaryKey: true},
				{Name: "name", Type: "text"},
			},
		},
		HeapFirstPageID:   0,
		IndexHeaderPageID: types.InvalidPageID,
	}
}

func TestCreateThenGetTableRoundTrips(t *testing.T) {
	m := newTestManager(t)

	if err := m.CreateTable(testInfo()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	got, err := m.GetTable("widgets")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if got.Schema.TableName != "widgets" || len(got.Schema.Columns) != 2 {
		t.Fatalf("GetTable = %+v, want the schema just created", got)
	}
	if got.HeapFirstPageID != 0 {
		t.Fatalf("HeapFirstPageID = %d, want 0", got.HeapFirstPageID)
	}
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	m := newTestManager(t)

	if err := m.CreateTable(testInfo()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := m.CreateTable(testInfo()); err == nil {
		t.Fatalf("expected a second CreateTable with the same name to fail")
	}
}

func TestGetTableSurvivesCacheEviction(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateTable(testInfo()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	m.cache.Del("widgets") // force the next GetTable to fall back to disk

	got, err := m.GetTable("widgets")
	if err != nil {
		t.Fatalf("GetTable after cache eviction: %v", err)
	}
	if got.Schema.TableName != "widgets" {
		t.Fatalf("GetTable after cache eviction = %+v", got)
	}
}

func TestUpdateTablePersistsIndexHeaderPageID(t *testing.T) {
	m := newTestManager(t)
	info := testInfo()
	if err := m.CreateTable(info); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	info.IndexHeaderPageID = 7
	if err := m.UpdateTable(info); err != nil {
		t.Fatalf("UpdateTable: %v", err)
	}

	got, err := m.GetTable("widgets")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if got.IndexHeaderPageID != 7 {
		t.Fatalf("IndexHeaderPageID = %d, want 7", got.IndexHeaderPageID)
	}
}

func TestDropTableRemovesIt(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateTable(testInfo()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := m.DropTable("widgets"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, err := m.GetTable("widgets"); err == nil {
		t.Fatalf("expected GetTable to fail after DropTable")
	}
}

func TestListTables(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateTable(testInfo()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	other := testInfo()
	other.Schema.TableName = "gadgets"
	if err := m.CreateTable(other); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	names, err := m.ListTables()
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("ListTables = %v, want 2 entries", names)
	}
}

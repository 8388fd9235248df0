// Package catalog is the storage core's table registry: table schemas and
// the page ids a table's data lives under (the heap's first page, and its
// hash index's header page, if any), persisted as JSON files under a
// database root directory. Adapted from
// storage_engine/catalog/{main.go,structs.go} (dbRoot/currDb layout,
// per-table JSON schema files, table-to-file-id JSON persistence), with
// the teacher's unbounded in-memory map replaced by a bounded
// github.com/dgraph-io/ristretto/v2 read-through cache and file ids
// replaced by the PageID this module actually addresses storage with.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/ristretto/v2"

	"corestore/internal/logging"
	"corestore/internal/types"
)

var log = logging.Component("catalog")

// ColumnDef describes one column of a table, adapted from
// types.ColumnDef.
type ColumnDef struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// TableSchema is a table's column layout, adapted from types.TableSchema
// (its ForeignKeyDef is dropped: foreign-key constraint enforcement is
// query-optimizer-adjacent machinery this module's Non-goals exclude).
type TableSchema struct {
	TableName string      `json:"table_name"`
	Columns   []ColumnDef `json:"columns"`
}

// TableInfo is everything the catalog persists about one table: its
// schema and the page ids its storage structures are rooted at.
type TableInfo struct {
	Schema            TableSchema  `json:"schema"`
	HeapFirstPageID   types.PageID `json:"heap_first_page_id"`
	IndexHeaderPageID types.PageID `json:"index_header_page_id"`
}

// Manager persists table metadata under dbRoot/tables/*.json and serves
// reads through a bounded cache.
type Manager struct {
	dbRoot string
	cache  *ristretto.Cache[string, *TableInfo]
}

// New opens a catalog rooted at dbRoot, creating the directory layout if
// it does not already exist.
func New(dbRoot string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(dbRoot, "tables"), 0755); err != nil {
		return nil, fmt.Errorf("catalog: create %s: %w", dbRoot, err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *TableInfo]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: build cache: %w", err)
	}

	return &Manager{dbRoot: dbRoot, cache: cache}, nil
}

func (m *Manager) schemaPath(name string) string {
	return filepath.Join(m.dbRoot, "tables", name+".json")
}

// CreateTable registers a new table and persists it, failing if the name
// is already taken.
func (m *Manager) CreateTable(info TableInfo) error {
	path := m.schemaPath(info.Schema.TableName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("catalog: table %q already exists", info.Schema.TableName)
	}
	if err := m.persist(&info); err != nil {
		return err
	}
	m.cache.SetWithTTL(info.Schema.TableName, &info, 1, 0)
	m.cache.Wait()
	log.WithField("table", info.Schema.TableName).Info("table created")
	return nil
}

// GetTable returns a table's metadata, checking the cache before falling
// back to disk.
func (m *Manager) GetTable(name string) (*TableInfo, error) {
	if info, ok := m.cache.Get(name); ok {
		return info, nil
	}

	data, err := os.ReadFile(m.schemaPath(name))
	if err != nil {
		return nil, fmt.Errorf("catalog: table %q does not exist", name)
	}
	var info TableInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("catalog: table %q has a corrupt schema file: %w", name, err)
	}

	m.cache.SetWithTTL(name, &info, 1, 0)
	m.cache.Wait()
	return &info, nil
}

// UpdateTable persists a change to a table's metadata (e.g. recording the
// hash index's header page id once one is built).
func (m *Manager) UpdateTable(info TableInfo) error {
	if err := m.persist(&info); err != nil {
		return err
	}
	m.cache.SetWithTTL(info.Schema.TableName, &info, 1, 0)
	m.cache.Wait()
	return nil
}

// DropTable removes a table's schema file and cache entry.
func (m *Manager) DropTable(name string) error {
	if err := os.Remove(m.schemaPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("catalog: drop table %q: %w", name, err)
	}
	m.cache.Del(name)
	return nil
}

// ListTables returns every registered table name.
func (m *Manager) ListTables() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.dbRoot, "tables"))
	if err != nil {
		return nil, fmt.Errorf("catalog: list tables: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

func (m *Manager) persist(info *TableInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: marshal table %q: %w", info.Schema.TableName, err)
	}
	if err := os.WriteFile(m.schemaPath(info.Schema.TableName), data, 0644); err != nil {
		return fmt.Errorf("catalog: persist table %q: %w", info.Schema.TableName, err)
	}
	return nil
}

// Close releases the cache's background goroutines.
func (m *Manager) Close() {
	m.cache.Close()
}

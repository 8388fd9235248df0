// Package scan implements sequential scan (C8), grounded on
// original_source/src/execution/seq_scan_executor.cpp: Next repeatedly
// pulls from the table iterator and applies an optional predicate,
// skipping non-matching rows rather than materializing them all up
// front.
package scan

import (
	"corestore/internal/execution"
	"corestore/internal/heap"
	"corestore/internal/tuple"
)

// Predicate reports whether row should be included in the scan's output.
type Predicate func(row execution.Row) bool

// SeqScan yields every live row in a table heap, optionally filtered.
type SeqScan struct {
	table     *heap.Table
	predicate Predicate
	it        *heap.Iterator
}

// New builds a scan over table. A nil predicate matches every row.
func New(table *heap.Table, predicate Predicate) *SeqScan {
	return &SeqScan{table: table, predicate: predicate}
}

func (s *SeqScan) Init() error {
	s.it = s.table.Iterator()
	return nil
}

func (s *SeqScan) Next() (execution.Row, bool, error) {
	for {
		_, data, ok := s.it.Next()
		if !ok {
			return nil, false, nil
		}
		rec, err := tuple.DecodeRecord(data)
		if err != nil {
			return nil, false, err
		}
		row := execution.Row(rec)
		if s.predicate == nil || s.predicate(row) {
			return row, true, nil
		}
	}
}

func (s *SeqScan) Close() {
	if s.it != nil {
		s.it.Close()
	}
}

// Package insert implements the insert operator (C8), grounded on
// original_source/src/execution/insert_executor.cpp: Next pulls rows from
// a child operator (or, for a raw values list, has none at all) and
// writes each through the table heap, which is what actually emits the
// INSERT log record — this operator is a thin driver over
// internal/heap.Table.InsertTuple, per spec.md §4.7's description of
// insert as writing through the table heap.
package insert

import (
	"fmt"

	"corestore/internal/execution"
	"corestore/internal/heap"
	"corestore/internal/tuple"
	"corestore/internal/txn"
)

// Insert writes every row child produces into table, on behalf of tx.
// When child is nil, Values supplies rows directly (the "raw insert"
// case insert_executor.cpp special-cases for a literal VALUES list).
type Insert struct {
	table  *heap.Table
	tx     *txn.Transaction
	child  execution.Operator
	Values []execution.Row

	pos      int
	inserted int
	done     bool
}

// New builds an insert operator that drains child into table.
func New(table *heap.Table, tx *txn.Transaction, child execution.Operator) *Insert {
	return &Insert{table: table, tx: tx, child: child}
}

// NewValues builds an insert operator over a literal row list, with no
// child to pull from.
func NewValues(table *heap.Table, tx *txn.Transaction, values []execution.Row) *Insert {
	return &Insert{table: table, tx: tx, Values: values}
}

func (op *Insert) Init() error {
	if op.child != nil {
		return op.child.Init()
	}
	return nil
}

// Next inserts rows until the source is exhausted, then yields a single
// summary row ({"inserted": n}) and reports EOF on the call after that —
// mirroring insert_executor.cpp's InsertPlanNode, whose output schema is
// the count of rows written rather than the rows themselves.
func (op *Insert) Next() (execution.Row, bool, error) {
	if op.done {
		return nil, false, nil
	}

	for {
		row, ok, err := op.nextSourceRow()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		rec := tuple.Record(row)
		data, err := rec.Encode()
		if err != nil {
			return nil, false, fmt.Errorf("insert: encode row: %w", err)
		}
		if _, err := op.table.InsertTuple(op.tx, data); err != nil {
			return nil, false, fmt.Errorf("insert: %w", err)
		}
		op.inserted++
	}

	op.done = true
	return execution.Row{"inserted": op.inserted}, true, nil
}

func (op *Insert) nextSourceRow() (execution.Row, bool, error) {
	if op.child != nil {
		return op.child.Next()
	}
	if op.pos >= len(op.Values) {
		return nil, false, nil
	}
	row := op.Values[op.pos]
	op.pos++
	return row, true, nil
}

func (op *Insert) Close() {
	if op.child != nil {
		op.child.Close()
	}
}

// Package execution defines the iterator-style operator contract C8's
// consumers are built on: Init prepares an operator's state, Next yields
// one row at a time and reports false at end of input. Grounded on
// original_source/src/execution/{seq_scan_executor.cpp,
// aggregation_executor.cpp,hash_join_executor.cpp,insert_executor.cpp}'s
// Init/Next split, restated in the teacher's error-returning idiom (a
// BusTub executor signals failure by simply returning false from Next;
// this module distinguishes "no more rows" from "something went wrong"
// with a proper error return, the way every other package here does).
// These operators are consumers of the storage core (spec.md §1/§4.7/§6)
// — thin, and shown only against the contract they rely on.
package execution

// Row is one operator output: column name to value.
type Row map[string]any

// Operator is the iterator every execution package implements.
type Operator interface {
	// Init prepares the operator to be pulled from, materializing any
	// build-side state (e.g. hash join's left-child hash table).
	Init() error
	// Next produces the next output row. ok is false once the operator is
	// exhausted; err is non-nil only on a genuine failure.
	Next() (row Row, ok bool, err error)
	// Close releases any pages or resources the operator still holds.
	Close()
}

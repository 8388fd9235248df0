package tuple

import "encoding/json"

// Record is a named-column view over a tuple's bytes, used by
// internal/execution operators (sequential scan, insert, hash join) that
// need column access rather than the
// opaque bytes internal/heap and internal/wal deal in. Adapted from
// types/row.go's Row, dropping its embedded RowPointer (superseded by
// types.RID, which callers already track separately) and its Set/Clone
// helpers, which no caller in this module needs.
type Record map[string]any

// Encode serializes r the way the teacher encodes every on-disk structure
// it doesn't need byte-exact control over: JSON, matching
// storage_engine/catalog's schema persistence and types/operations.go's
// Operation.Encode.
func (r Record) Encode() (Tuple, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return Tuple(data), nil
}

// DecodeRecord parses a tuple's bytes back into a Record.
func DecodeRecord(t Tuple) (Record, error) {
	var r Record
	if err := json.Unmarshal(t, &r); err != nil {
		return nil, err
	}
	return r, nil
}

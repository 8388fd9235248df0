// Package wal is the storage core's write-ahead log (spec.md C6): a
// tagged log record format and a double-buffered log manager with a
// background flush goroutine and group commit, grounded on
// original_source/src/recovery/log_manager.cpp's AppendLogRecord/
// RunFlushThread/Flush control flow. The teacher's own wal_manager
// package (segment files, JSON-encoded types.Operation bodies, no
// prev-LSN chain) does not implement ARIES-style logging at all, so this
// package's record format follows the original source directly rather
// than adapting the teacher's.
package wal

import (
	"encoding/binary"
	"fmt"

	"corestore/internal/tuple"
	"corestore/internal/types"
)

// RecordType tags the kind of log record, mirroring BusTub's
// LogRecordType enum.
type RecordType byte

const (
	RecordInvalid RecordType = iota
	RecordBegin
	RecordCommit
	RecordAbort
	RecordInsert
	RecordMarkDelete
	RecordApplyDelete
	RecordRollbackDelete
	RecordUpdate
	RecordNewPage
)

func (t RecordType) String() string {
	switch t {
	case RecordBegin:
		return "BEGIN"
	case RecordCommit:
		return "COMMIT"
	case RecordAbort:
		return "ABORT"
	case RecordInsert:
		return "INSERT"
	case RecordMarkDelete:
		return "MARKDELETE"
	case RecordApplyDelete:
		return "APPLYDELETE"
	case RecordRollbackDelete:
		return "ROLLBACKDELETE"
	case RecordUpdate:
		return "UPDATE"
	case RecordNewPage:
		return "NEWPAGE"
	default:
		return "INVALID"
	}
}

// headerSize is Size(4) + LSN(4) + TxnID(4) + PrevLSN(4) + Type(4).
const headerSize = 20

// Record is one write-ahead log entry. Which of the body fields are
// meaningful depends on Type, exactly as BusTub's single LogRecord struct
// carries a union of every record shape.
type Record struct {
	LSN     types.LSN
	PrevLSN types.LSN
	TxnID   types.TxnID
	Type    RecordType

	RID      types.RID // INSERT, MARKDELETE, APPLYDELETE, ROLLBACKDELETE, UPDATE
	Tuple    tuple.Tuple
	OldTuple tuple.Tuple // UPDATE only
	NewTuple tuple.Tuple // UPDATE only

	PrevPageID types.PageID // NEWPAGE
	PageID     types.PageID // NEWPAGE
}

// Size is the number of bytes Encode will produce for this record.
func (r *Record) Size() int {
	switch r.Type {
	case RecordInsert, RecordMarkDelete, RecordApplyDelete, RecordRollbackDelete:
		return headerSize + types.RIDSize + r.Tuple.EncodedSize()
	case RecordUpdate:
		return headerSize + types.RIDSize + r.OldTuple.EncodedSize() + r.NewTuple.EncodedSize()
	case RecordNewPage:
		return headerSize + 8
	default:
		return headerSize
	}
}

// Encode serializes the record into buf, which must be at least Size()
// bytes.
func (r *Record) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Size()))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.LSN))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.TxnID))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.PrevLSN))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(r.Type))

	pos := headerSize
	switch r.Type {
	case RecordInsert, RecordMarkDelete, RecordApplyDelete, RecordRollbackDelete:
		r.RID.Encode(buf[pos : pos+types.RIDSize])
		pos += types.RIDSize
		r.Tuple.Encode(buf[pos:])
	case RecordUpdate:
		r.RID.Encode(buf[pos : pos+types.RIDSize])
		pos += types.RIDSize
		n := r.OldTuple.Encode(buf[pos:])
		pos += n
		r.NewTuple.Encode(buf[pos:])
	case RecordNewPage:
		binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(r.PrevPageID))
		binary.LittleEndian.PutUint32(buf[pos+4:pos+8], uint32(r.PageID))
	}
}

// Decode reads one record from the front of buf, returning it and false
// if buf does not hold a complete record (a torn write at the tail of the
// log from a crash mid-append) — grounded on
// log_recovery.cpp's DeserializeLogRecord bounds check.
func Decode(buf []byte) (*Record, bool) {
	if len(buf) < headerSize {
		return nil, false
	}
	size := int(binary.LittleEndian.Uint32(buf[0:4]))
	if size < headerSize || size > len(buf) {
		return nil, false
	}

	r := &Record{
		LSN:     types.LSN(binary.LittleEndian.Uint32(buf[4:8])),
		TxnID:   types.TxnID(binary.LittleEndian.Uint32(buf[8:12])),
		PrevLSN: types.LSN(binary.LittleEndian.Uint32(buf[12:16])),
		Type:    RecordType(binary.LittleEndian.Uint32(buf[16:20])),
	}

	pos := headerSize
	switch r.Type {
	case RecordInsert, RecordMarkDelete, RecordApplyDelete, RecordRollbackDelete:
		if pos+types.RIDSize > size {
			return nil, false
		}
		r.RID = types.DecodeRID(buf[pos : pos+types.RIDSize])
		pos += types.RIDSize
		tup, n, ok := tuple.Decode(buf[pos:size])
		if !ok {
			return nil, false
		}
		r.Tuple = tup
		pos += n
	case RecordUpdate:
		if pos+types.RIDSize > size {
			return nil, false
		}
		r.RID = types.DecodeRID(buf[pos : pos+types.RIDSize])
		pos += types.RIDSize
		old, n, ok := tuple.Decode(buf[pos:size])
		if !ok {
			return nil, false
		}
		r.OldTuple = old
		pos += n
		newTup, n, ok := tuple.Decode(buf[pos:size])
		if !ok {
			return nil, false
		}
		r.NewTuple = newTup
		pos += n
	case RecordNewPage:
		if pos+8 > size {
			return nil, false
		}
		r.PrevPageID = types.PageID(binary.LittleEndian.Uint32(buf[pos : pos+4]))
		r.PageID = types.PageID(binary.LittleEndian.Uint32(buf[pos+4 : pos+8]))
	case RecordBegin, RecordCommit, RecordAbort:
	default:
		return nil, false
	}
	return r, true
}

func (r *Record) String() string {
	return fmt.Sprintf("%s lsn=%d prevLSN=%d txn=%d", r.Type, r.LSN, r.PrevLSN, r.TxnID)
}

// Package types holds the identifiers shared across the storage core:
// page ids, log sequence numbers, transaction ids and record ids. Keeping
// them in one leaf package avoids the import cycles that would otherwise
// appear between disk, buffer, page, wal and recovery.
package types

import (
	"encoding/binary"
	"fmt"
)

// PageID identifies a page within the data file. Ids are assigned
// monotonically by the disk manager and are never reused (see
// internal/disk).
type PageID int32

// InvalidPageID is returned when no page could be allocated or found.
const InvalidPageID PageID = -1

// LSN is a log sequence number: a monotone position in the write-ahead log.
type LSN int32

// InvalidLSN marks the end of a transaction's prev-LSN chain.
const InvalidLSN LSN = -1

// TxnID identifies a transaction.
type TxnID int32

// InvalidTxnID marks the absence of an owning transaction.
const InvalidTxnID TxnID = -1

// RID (record id) locates a tuple within a heap page: the page it lives on
// and its slot within that page's slot directory.
type RID struct {
	PageID  PageID
	SlotNum uint32
}

func (r RID) String() string {
	return fmt.Sprintf("%d:%d", r.PageID, r.SlotNum)
}

// RIDSize is the wire size of an encoded RID (spec.md's "rid (8 B)").
const RIDSize = 8

// Encode writes the RID as 8 little-endian bytes: PageID then SlotNum.
func (r RID) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.PageID))
	binary.LittleEndian.PutUint32(buf[4:8], r.SlotNum)
}

// DecodeRID reads a RID from its 8-byte encoding.
func DecodeRID(buf []byte) RID {
	return RID{
		PageID:  PageID(binary.LittleEndian.Uint32(buf[0:4])),
		SlotNum: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

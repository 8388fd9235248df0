// Package txn tracks transaction lifecycle (BEGIN/COMMIT/ABORT) and the
// per-transaction prev-LSN chain ARIES undo walks during recovery.
// Adapted from storage_engine/transaction_manager/{main.go,structs.go}:
// the active-transaction map and Begin/Commit/Abort/GetTransaction/
// IsActive/ActiveTransactions shape survives unchanged, but every state
// transition now goes through internal/wal instead of being a bare
// in-memory flag flip, and InsertedRow/UpdatedRow's logical-undo bookkeeping
// is replaced by the single LastLSN pointer ARIES actually needs (the log
// itself is the undo record, not a parallel Go slice of what changed).
package txn

import (
	"fmt"
	"sync"

	"corestore/internal/logging"
	"corestore/internal/types"
	"corestore/internal/wal"
)

var log = logging.Component("txn")

// State is a transaction's lifecycle stage.
type State uint8

const (
	Active State = iota
	Committed
	Aborted
)

// Transaction is a single unit of work. LastLSN is the LSN of the most
// recent log record this transaction produced, updated by every call to
// Manager.Append; recovery's undo pass walks it backward via each
// record's PrevLSN.
type Transaction struct {
	ID      types.TxnID
	State   State
	LastLSN types.LSN

	mu sync.Mutex
}

func (t *Transaction) setLastLSN(lsn types.LSN) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.LastLSN = lsn
}

// Manager assigns transaction ids and, atomically with the log manager,
// records BEGIN/COMMIT/ABORT.
type Manager struct {
	mu     sync.RWMutex
	nextID types.TxnID
	active map[types.TxnID]*Transaction
	wal    *wal.Manager
}

// New builds a transaction manager writing through log.
func New(log *wal.Manager) *Manager {
	return &Manager{
		active: make(map[types.TxnID]*Transaction),
		wal:    log,
	}
}

// Begin starts a new transaction, writes its BEGIN record, and registers
// it as active.
func (m *Manager) Begin() *Transaction {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	t := &Transaction{ID: id, State: Active, LastLSN: types.InvalidLSN}
	m.active[id] = t
	m.mu.Unlock()

	lsn := m.wal.Append(&wal.Record{Type: wal.RecordBegin, TxnID: id, PrevLSN: types.InvalidLSN})
	t.setLastLSN(lsn)
	return t
}

// Append writes rec on t's behalf, filling in TxnID and chaining PrevLSN
// to t's last record, and advances t.LastLSN to the new record's LSN.
// internal/heap calls this for every INSERT/UPDATE/*DELETE/NEWPAGE it
// produces on behalf of a transaction.
func (m *Manager) Append(t *Transaction, rec *wal.Record) types.LSN {
	rec.TxnID = t.ID
	rec.PrevLSN = t.LastLSN
	lsn := m.wal.Append(rec)
	t.setLastLSN(lsn)
	return lsn
}

// Commit writes t's COMMIT record, forces the log durable, and retires
// the transaction.
func (m *Manager) Commit(t *Transaction) error {
	m.mu.Lock()
	if _, ok := m.active[t.ID]; !ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if t.State == Aborted {
		return fmt.Errorf("transaction %d already aborted", t.ID)
	}

	lsn := m.Append(t, &wal.Record{Type: wal.RecordCommit})
	m.wal.Flush()

	m.mu.Lock()
	t.State = Committed
	delete(m.active, t.ID)
	m.mu.Unlock()

	log.WithField("txnID", t.ID).WithField("lsn", lsn).Info("commit")
	return nil
}

// Abort writes t's ABORT record. Undoing the transaction's own writes
// while it is still running (as opposed to during crash recovery, which
// internal/recovery handles for transactions active at crash time) is out
// of scope; see DESIGN.md's open-question decisions.
func (m *Manager) Abort(t *Transaction) error {
	m.mu.Lock()
	if _, ok := m.active[t.ID]; !ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if t.State == Committed {
		return fmt.Errorf("transaction %d already committed", t.ID)
	}

	m.Append(t, &wal.Record{Type: wal.RecordAbort})

	m.mu.Lock()
	t.State = Aborted
	delete(m.active, t.ID)
	m.mu.Unlock()

	return nil
}

// GetTransaction returns the active transaction with the given id, or nil.
func (m *Manager) GetTransaction(id types.TxnID) *Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[id]
}

// IsActive reports whether id currently names an active transaction.
func (m *Manager) IsActive(id types.TxnID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[id]
	return ok
}

// ActiveTransactions returns a snapshot of all currently active
// transactions.
func (m *Manager) ActiveTransactions() []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Transaction, 0, len(m.active))
	for _, t := range m.active {
		out = append(out, t)
	}
	return out
}

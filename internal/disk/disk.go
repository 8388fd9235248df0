// Package disk is the storage core's only component that touches the
// filesystem directly: fixed-size page slots in a single data file, and
// an append-only single log file. Grounded on
// storage_engine/disk_manager/main.go's ReadPage/WritePage/AllocatePage
// contract (ReadAt/WriteAt against an *os.File under an RWMutex, %w-wrapped
// errors) and on wal_manager/wal_segment.go's O_APPEND-plus-explicit-Sync
// idiom for the log file, collapsed from the teacher's multi-file /
// multi-segment schemes to the single data file and single log file
// spec.md §4.1/§6 describe.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"corestore/internal/logging"
	"corestore/internal/page"
	"corestore/internal/types"
)

var log = logging.Component("disk")

// Manager owns the data file and log file file descriptors and the
// page-id allocation counter.
type Manager struct {
	mu         sync.RWMutex
	dataFile   *os.File
	logFile    *os.File
	nextPageID types.PageID
	numFlushes uint64
	numWrites  uint64
}

// New opens (creating if absent) the data file at dataPath and the log
// file at logPath, and derives the next free page id from the data
// file's current size.
func New(dataPath, logPath string) (*Manager, error) {
	dataFile, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open data file %s: %w", dataPath, err)
	}

	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	stat, err := dataFile.Stat()
	if err != nil {
		dataFile.Close()
		logFile.Close()
		return nil, fmt.Errorf("stat data file %s: %w", dataPath, err)
	}

	numPages := types.PageID(stat.Size() / int64(page.Size))

	log.WithField("numPages", numPages).Info("disk manager opened")

	return &Manager{
		dataFile:   dataFile,
		logFile:    logFile,
		nextPageID: numPages,
	}, nil
}

// ReadPage reads the fixed-size slot for id out of the data file. Reading
// past the current end of file (a page allocated but never written) is
// not an error: the slot is returned zero-filled, since AllocatePage does
// not itself touch disk.
func (m *Manager) ReadPage(id types.PageID) (*page.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pg := page.New(id)
	offset := int64(id) * int64(page.Size)
	n, err := m.dataFile.ReadAt(pg.Data, offset)
	if err != nil && n == 0 {
		if errors.Is(err, io.EOF) {
			return pg, nil
		}
		return nil, fmt.Errorf("read page %d: %w", id, err)
	}
	for i := n; i < len(pg.Data); i++ {
		pg.Data[i] = 0
	}
	return pg, nil
}

// WritePage flushes a page's current bytes to its slot in the data file.
func (m *Manager) WritePage(pg *page.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(pg.Data) != page.Size {
		return fmt.Errorf("write page %d: data size %d does not match page size %d", pg.ID, len(pg.Data), page.Size)
	}

	offset := int64(pg.ID) * int64(page.Size)
	if _, err := m.dataFile.WriteAt(pg.Data, offset); err != nil {
		return fmt.Errorf("write page %d: %w", pg.ID, err)
	}
	m.numWrites++
	return nil
}

// AllocatePage reserves the next page id without writing anything to
// disk; the buffer pool writes the slot the first time the new page is
// flushed.
func (m *Manager) AllocatePage() types.PageID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextPageID
	m.nextPageID++
	return id
}

// DeallocatePage exists to satisfy the buffer pool's contract
// (spec.md C3, DeletePage) but performs no reclamation: like BusTub's own
// DeallocatePage, freeing a slot's disk space is out of scope and left to
// a future compaction pass. Kept as an explicit call so callers do not
// need to special-case "no reclamation" themselves.
func (m *Manager) DeallocatePage(id types.PageID) {}

// WriteLog appends data to the log file and fsyncs it, satisfying the
// force-log-before-flush interlock (spec.md §4.6): once WriteLog returns,
// every record inside data is durable.
func (m *Manager) WriteLog(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	if _, err := m.logFile.Write(data); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	if err := m.logFile.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	m.numFlushes++
	return nil
}

// ReadLog reads the entire log file, used by internal/recovery to scan
// it front to back on startup.
func (m *Manager) ReadLog() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.logFile.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek log: %w", err)
	}
	stat, err := m.logFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}
	buf := make([]byte, stat.Size())
	if _, err := m.logFile.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return buf, nil
}

// LogSize reports the log file's current length, used by a clean
// shutdown checkpoint to record how much of the log redo can skip on the
// next startup.
func (m *Manager) LogSize() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stat, err := m.logFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat log: %w", err)
	}
	return stat.Size(), nil
}

// SetNextPageID lets recovery re-seat the allocation counter past the
// highest page id it saw referenced in the log, in case a crash happened
// between AllocatePage and the first WritePage of a new page.
func (m *Manager) SetNextPageID(id types.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id > m.nextPageID {
		m.nextPageID = id
	}
}

// NumWrites and NumFlushes report how many page writes and log flushes
// this manager has performed since it was opened.
func (m *Manager) NumWrites() uint64 { m.mu.RLock(); defer m.mu.RUnlock(); return m.numWrites }
func (m *Manager) NumFlushes() uint64 { m.mu.RLock(); defer m.mu.RUnlock(); return m.numFlushes }

// Shutdown closes both files, syncing the data file first.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.dataFile.Sync(); err != nil {
		return fmt.Errorf("sync data file: %w", err)
	}
	if err := m.dataFile.Close(); err != nil {
		return fmt.Errorf("close data file: %w", err)
	}
	if err := m.logFile.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

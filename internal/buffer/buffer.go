// Package buffer is the storage core's buffer pool manager (spec.md C3):
// a fixed set of frames backed by internal/disk, replacement decisions
// delegated to internal/replacer, and a WAL-before-write interlock that
// forces the log manager durable up to a dirty victim's page-LSN before
// writing it out. Grounded on storage_engine/bufferpool/
// {bufferpool.go,structs.go} for the FetchPage/NewPage/UnpinPage/
// FlushPage/DeletePage contract and its WALFlushedLSNGetter
// capability-interface pattern, restructured around
// original_source/src/buffer/buffer_pool_manager.cpp's
// GetVictimFrameId: victim selection (free list, then replacer) is
// factored into one helper the teacher's own FetchPage/NewPage/evictLRU
// each reimplemented separately.
package buffer

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"

	"corestore/internal/disk"
	"corestore/internal/logging"
	"corestore/internal/page"
	"corestore/internal/replacer"
	"corestore/internal/types"
)

var log = logging.Component("buffer")

// Flusher is the log manager's durability capability as seen by the
// buffer pool: report the durable-LSN watermark, and force the log
// durable up through whatever is currently buffered. The pool depends on
// this narrow interface rather than the whole log manager, mirroring
// storage_engine/bufferpool/structs.go's WALFlushedLSNGetter pattern,
// widened to also expose the force-flush spec.md §4.3 requires
// ("must call the log manager's flush()") rather than only a read of the
// watermark.
type Flusher interface {
	FlushedLSN() types.LSN
	Flush()
}

// Manager is the buffer pool: a fixed array of frames, a page-id-to-frame
// index, a free list, and a pluggable Replacer for frames that are
// currently occupied but unpinned.
type Manager struct {
	mu        sync.Mutex
	disk      *disk.Manager
	replacer  replacer.Replacer
	wal       Flusher
	frames    []*page.Page
	pageTable map[types.PageID]int
	freeList  []int
}

// New builds a buffer pool of the given capacity over disk.
func New(capacity int, d *disk.Manager) *Manager {
	free := make([]int, capacity)
	for i := range free {
		free[i] = i
	}
	return &Manager{
		disk:      d,
		replacer:  replacer.NewClock(capacity),
		frames:    make([]*page.Page, capacity),
		pageTable: make(map[types.PageID]int, capacity),
		freeList:  free,
	}
}

// SetWAL wires the log manager's force-flush/durable-LSN capability in.
// Buffer pools built with EnableLogging=false never call this, and the
// interlock is skipped entirely.
func (m *Manager) SetWAL(wal Flusher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wal = wal
}

// victim picks a frame to (re)populate: the free list first, then the
// replacer. It does not evict anything itself — the caller decides what
// to do with whatever page currently occupies the returned frame.
func (m *Manager) victim() (int, bool) {
	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return id, true
	}
	return m.replacer.Victim()
}

// evictFrame flushes frame's current occupant if dirty (forcing the WAL
// up to the page's LSN first) and removes it from the page table. On a
// genuine disk I/O failure the frame is restored to the replacer's
// candidate set — frameID was already removed from replacer contention
// by the Victim() call that selected it, so a caller that leaves it here
// without a home would orphan it, pinned by nothing yet never
// selectable again (spec.md §7's capacity contract requires every
// unpinned frame stay a valid victim candidate).
func (m *Manager) evictFrame(frameID int) error {
	pg := m.frames[frameID]
	if pg == nil {
		return nil
	}
	if pg.IsDirty {
		if err := m.flushLocked(pg); err != nil {
			m.replacer.Unpin(frameID)
			return fmt.Errorf("evict frame %d: %w", frameID, err)
		}
	}
	delete(m.pageTable, pg.ID)
	m.frames[frameID] = nil
	return nil
}

// flushLocked forces the log durable up through pg's page-LSN (spec.md
// §4.3: "must force the log before writing out a dirty victim whose
// page-LSN exceeds the persistent-LSN") and then writes pg to disk.
// Caller holds m.mu.
func (m *Manager) flushLocked(pg *page.Page) error {
	if m.wal != nil && pg.LSN() > m.wal.FlushedLSN() {
		m.wal.Flush()
	}
	if err := m.disk.WritePage(pg); err != nil {
		return err
	}
	pg.IsDirty = false
	return nil
}

// FetchPage returns the page with id, pinned, loading it from disk into a
// frame if it is not already resident.
func (m *Manager) FetchPage(id types.PageID) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frameID, ok := m.pageTable[id]; ok {
		pg := m.frames[frameID]
		pg.PinCount++
		m.replacer.Pin(frameID)
		log.WithField("pageID", id).Debug("hit")
		return pg, nil
	}

	frameID, ok := m.victim()
	if !ok {
		return nil, fmt.Errorf("fetch page %d: buffer pool exhausted, all frames pinned", id)
	}
	if err := m.evictFrame(frameID); err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", id, err)
	}

	pg, err := m.disk.ReadPage(id)
	if err != nil {
		m.freeList = append(m.freeList, frameID)
		return nil, fmt.Errorf("fetch page %d: %w", id, err)
	}

	pg.PinCount = 1
	m.frames[frameID] = pg
	m.pageTable[id] = frameID
	m.replacer.Pin(frameID)
	log.WithField("pageID", id).Debug("miss, loaded from disk")
	return pg, nil
}

// NewPage allocates a fresh page id, seats it in a frame pinned once, and
// marks it dirty (there is nothing on disk yet to consider it clean
// against).
func (m *Manager) NewPage() (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.victim()
	if !ok {
		return nil, fmt.Errorf("new page: buffer pool exhausted, all frames pinned")
	}
	if err := m.evictFrame(frameID); err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}

	id := m.disk.AllocatePage()
	pg := page.New(id)
	pg.PinCount = 1
	pg.IsDirty = true

	m.frames[frameID] = pg
	m.pageTable[id] = frameID
	m.replacer.Pin(frameID)
	log.WithField("pageID", id).Debug("allocated")
	return pg, nil
}

// UnpinPage decrements a page's pin count, marking it dirty if isDirty is
// true, and hands the frame back to the replacer once nothing pins it.
func (m *Manager) UnpinPage(id types.PageID, isDirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[id]
	if !ok {
		return fmt.Errorf("unpin page %d: not in buffer pool", id)
	}
	pg := m.frames[frameID]
	if pg.PinCount == 0 {
		return fmt.Errorf("unpin page %d: pin count already 0", id)
	}
	if isDirty {
		pg.IsDirty = true
	}
	pg.PinCount--
	if pg.PinCount == 0 {
		m.replacer.Unpin(frameID)
	}
	return nil
}

// FlushPage forces id to disk if dirty, subject to the WAL interlock.
func (m *Manager) FlushPage(id types.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[id]
	if !ok {
		return fmt.Errorf("flush page %d: not in buffer pool", id)
	}
	pg := m.frames[frameID]
	if !pg.IsDirty {
		return nil
	}
	if err := m.flushLocked(pg); err != nil {
		return fmt.Errorf("flush page %d: %w", id, err)
	}
	return nil
}

// FlushAllPages flushes every dirty page currently resident, forcing the
// WAL durable as needed. A genuine disk I/O failure is fatal per spec
// and is returned rather than swallowed.
func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, frameID := range m.pageTable {
		pg := m.frames[frameID]
		if !pg.IsDirty {
			continue
		}
		if err := m.flushLocked(pg); err != nil {
			return fmt.Errorf("flush all pages: pageID %d: %w", id, err)
		}
	}
	return nil
}

// DeletePage removes id from the buffer pool and returns its frame to the
// free list. The disk manager is told to deallocate the id, but page ids
// are never reused and the disk slot is not reclaimed. Fails if the page
// is still pinned; a page that is not resident is not an error.
func (m *Manager) DeletePage(id types.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[id]
	if !ok {
		return nil
	}
	pg := m.frames[frameID]
	if pg.PinCount > 0 {
		return fmt.Errorf("delete page %d: still pinned (pinCount=%d)", id, pg.PinCount)
	}
	m.disk.DeallocatePage(id)
	delete(m.pageTable, id)
	m.frames[frameID] = nil
	m.replacer.Pin(frameID)
	m.freeList = append(m.freeList, frameID)
	return nil
}

// Capacity returns the number of frames the pool holds.
func (m *Manager) Capacity() int { return len(m.frames) }

// Stats is a point-in-time snapshot of buffer pool occupancy, reported by
// GetStats for operator-facing tooling.
type Stats struct {
	Capacity     int
	Resident     int
	Dirty        int
	ResidentSize uint64
}

// GetStats reports how full the pool is and how much of that is dirty,
// logging a human-readable summary the way an operator watching corectl
// would want to read it rather than raw frame counts.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Capacity: len(m.frames)}
	for _, pg := range m.frames {
		if pg == nil {
			continue
		}
		stats.Resident++
		if pg.IsDirty {
			stats.Dirty++
		}
	}
	stats.ResidentSize = uint64(stats.Resident) * uint64(page.Size)

	log.WithField("resident", stats.Resident).
		WithField("dirty", stats.Dirty).
		WithField("size", humanize.Bytes(stats.ResidentSize)).
		Debug("buffer pool occupancy")
	return stats
}

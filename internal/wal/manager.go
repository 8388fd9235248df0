package wal

import (
	"fmt"
	"sync"
	"time"

	"corestore/internal/disk"
	"corestore/internal/logging"
	"corestore/internal/types"
)

var log = logging.Component("wal")

// Manager is the log manager: two byte buffers (the one records are
// appended into, and the one currently being written to disk), a
// background goroutine that swaps and flushes them, and group commit via
// a shared condition variable. Grounded on
// original_source/src/recovery/log_manager.cpp's
// RunFlushThread/StopFlushThread/AppendLogRecord/Flush.
type Manager struct {
	mu sync.Mutex

	disk *disk.Manager

	logBuf   []byte
	flushBuf []byte
	logOff   int
	flushOff int

	nextLSN       types.LSN
	persistentLSN types.LSN

	needFlush bool
	appendCV  *sync.Cond

	timeout time.Duration
	notify  chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New builds a log manager with the given per-buffer size and flush
// timeout. It does not start the flush goroutine; call Run for that.
func New(d *disk.Manager, bufferSize int, timeout time.Duration) *Manager {
	m := &Manager{
		disk:          d,
		logBuf:        make([]byte, bufferSize),
		flushBuf:      make([]byte, bufferSize),
		persistentLSN: types.InvalidLSN,
		timeout:       timeout,
		notify:        make(chan struct{}, 1),
		stop:          make(chan struct{}),
	}
	m.appendCV = sync.NewCond(&m.mu)
	return m
}

// Run starts the background flush goroutine. Calling Run twice is a no-op.
func (m *Manager) Run() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.flushLoop()
}

func (m *Manager) flushLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			m.mu.Lock()
			m.drainLocked()
			m.mu.Unlock()
			return
		case <-m.notify:
		case <-time.After(m.timeout):
		}

		m.mu.Lock()
		m.drainLocked()
		m.needFlush = false
		m.appendCV.Broadcast()
		m.mu.Unlock()
	}
}

// drainLocked swaps the two buffers and writes the flush buffer to disk.
// Caller holds m.mu.
func (m *Manager) drainLocked() {
	if m.logOff == 0 {
		return
	}
	m.logBuf, m.flushBuf = m.flushBuf, m.logBuf
	m.flushOff, m.logOff = m.logOff, 0

	if err := m.disk.WriteLog(m.flushBuf[:m.flushOff]); err != nil {
		log.WithError(err).Error("log flush failed")
		return
	}
	m.persistentLSN = m.nextLSN - 1
	m.flushOff = 0
}

func (m *Manager) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Append assigns the next LSN to rec, copies its encoded bytes into the
// log buffer (blocking and waking the flush goroutine if the buffer is
// currently full), and returns the assigned LSN. Callers must set rec's
// PrevLSN and TxnID before calling; Append fills in LSN.
func (m *Manager) Append(rec *Record) types.LSN {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := rec.Size()
	if size > len(m.logBuf) {
		// No amount of draining ever frees enough space for this record:
		// it alone is bigger than either buffer. LogBufferSize is a
		// construction-time configuration choice (internal/config.Config.
		// LogBufferSize); sizing it below the largest record the workload
		// can produce is a programmer error, not a condition a caller can
		// recover from by waiting, so fail loudly here instead of
		// blocking every future Append on a condition that can never
		// become true.
		panic(fmt.Sprintf("wal: record of %d bytes exceeds log buffer size %d", size, len(m.logBuf)))
	}

	for m.logOff+size > len(m.logBuf) {
		m.needFlush = true
		m.wake()
		m.appendCV.Wait()
	}

	rec.LSN = m.nextLSN
	m.nextLSN++
	rec.Encode(m.logBuf[m.logOff : m.logOff+size])
	m.logOff += size

	log.WithField("lsn", rec.LSN).WithField("type", rec.Type.String()).Debug("appended")
	return rec.LSN
}

// SetNextLSN seeds the LSN counter, used once at startup after recovery
// reports the highest LSN it saw on disk so the next Append continues
// past it instead of colliding with existing records.
func (m *Manager) SetNextLSN(lsn types.LSN) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLSN = lsn
	m.persistentLSN = lsn - 1
}

// Flush blocks until every record appended so far is durable.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.needFlush = true
	m.wake()
	for m.needFlush {
		m.appendCV.Wait()
	}
}

// FlushedLSN reports the highest LSN known durable, implementing
// internal/buffer.Flusher.
func (m *Manager) FlushedLSN() types.LSN {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistentLSN
}

// Stop flushes any remaining buffered records and stops the background
// goroutine. Safe to call even if Run was never called.
func (m *Manager) Stop() {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return
	}
	m.Flush()
	close(m.stop)
	m.wg.Wait()
}

// Package engine assembles the storage core's pieces into one process:
// disk manager, buffer pool, log manager, transaction manager, catalog
// and recovery, wired together the way the teacher's constructors are
// composed by hand in main.go (NewBufferPool(capacity, diskManager),
// NewCatalogManager(dbRoot)) rather than through a DI framework. cmd/
// corectl's subcommands each build one of these and use whatever subset
// of it they need.
package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"corestore/internal/buffer"
	"corestore/internal/catalog"
	"corestore/internal/config"
	"corestore/internal/disk"
	"corestore/internal/logging"
	"corestore/internal/recovery"
	"corestore/internal/txn"
	"corestore/internal/wal"
)

var log = logging.Component("engine")

// Engine holds every subsystem a running database process needs.
type Engine struct {
	Config     config.Config
	Disk       *disk.Manager
	Buffer     *buffer.Manager
	Log        *wal.Manager
	Txn        *txn.Manager
	Catalog    *catalog.Manager
	checkpoint *recovery.CheckpointManager
}

// Open constructs an Engine rooted at dbDir (created if it does not
// exist): dbDir/data.db, dbDir/log.wal, and dbDir/tables/*.json. When
// cfg.EnableLogging is set it runs crash recovery before returning,
// exactly as a real server must before accepting any work; with logging
// disabled no recovery runs and Log and Txn are left nil.
func Open(dbDir string, cfg config.Config) (*Engine, error) {
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("engine: create %s: %w", dbDir, err)
	}

	d, err := disk.New(filepath.Join(dbDir, "data.db"), filepath.Join(dbDir, "log.wal"))
	if err != nil {
		return nil, fmt.Errorf("engine: open disk: %w", err)
	}

	bp := buffer.New(cfg.BufferPoolSize, d)

	if cfg.EnableLogging {
		cpm := recovery.NewCheckpointManager(dbDir)
		cp := cpm.Load()

		lm := wal.New(d, cfg.LogBufferSize, cfg.LogTimeout)
		bp.SetWAL(lm)

		rm := recovery.New(d, bp)
		maxLSN, err := rm.RecoverFrom(cp.Offset)
		if err != nil {
			d.Shutdown()
			return nil, fmt.Errorf("engine: recover: %w", err)
		}
		if maxLSN < cp.LSN {
			maxLSN = cp.LSN
		}
		lm.SetNextLSN(maxLSN + 1)
		lm.Run()

		cm, err := catalog.New(dbDir)
		if err != nil {
			lm.Stop()
			d.Shutdown()
			return nil, fmt.Errorf("engine: open catalog: %w", err)
		}

		log.WithField("dbDir", dbDir).WithField("recoveredLSN", maxLSN).Info("engine open")
		return &Engine{Config: cfg, Disk: d, Buffer: bp, Log: lm, Txn: txn.New(lm), Catalog: cm, checkpoint: cpm}, nil
	}

	cm, err := catalog.New(dbDir)
	if err != nil {
		d.Shutdown()
		return nil, fmt.Errorf("engine: open catalog: %w", err)
	}
	log.WithField("dbDir", dbDir).Info("engine open, logging disabled")
	return &Engine{Config: cfg, Disk: d, Buffer: bp, Catalog: cm}, nil
}

// Close forces the log durable, flushes every dirty page, stops the log
// manager, checkpoints, and closes the underlying files, in that order.
// FlushAllPages's WAL interlock (buffer.go's flushLocked) forces the log
// itself whenever a dirty page's page-LSN outruns the persistent-LSN, but
// only on behalf of pages that are being written. Forcing the log first
// makes every record appended so far durable, including ones no resident
// page's LSN covers (a COMMIT, say), before any page reaches disk.
func (e *Engine) Close() error {
	if e.Log != nil {
		e.Log.Flush()
	}
	if err := e.Buffer.FlushAllPages(); err != nil {
		return fmt.Errorf("engine: flush all pages during shutdown: %w", err)
	}
	if e.Log != nil {
		e.Log.Stop()
	}
	if e.checkpoint != nil {
		offset, err := e.Disk.LogSize()
		if err != nil {
			log.WithError(err).Warn("engine: could not stat log for checkpoint, skipping")
		} else if err := e.checkpoint.Save(e.Log.FlushedLSN(), offset); err != nil {
			log.WithError(err).Warn("engine: checkpoint save failed")
		}
	}
	e.Catalog.Close()
	return e.Disk.Shutdown()
}

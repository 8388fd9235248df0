// Package recovery implements ARIES-style crash recovery (spec.md C7):
// a redo pass that replays every logged change whose page did not make
// it to disk before the crash, followed by an undo pass that rolls back
// whatever transactions were still active when the crash happened.
// Checkpointing is adapted almost verbatim from
// storage_engine/checkpoint_manager/{main.go,structs.go}'s atomic
// temp-file-then-rename-then-fsync-directory persistence, retargeted to
// record a single (LSN, log offset, timestamp) redo start point instead of a whole
// database dump.
package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"corestore/internal/logging"
	"corestore/internal/types"
)

var log = logging.Component("recovery")

// Checkpoint records the log offset redo can safely start from: every
// record at or before this LSN is guaranteed to already be reflected on
// disk for every page it touched.
type Checkpoint struct {
	LSN       types.LSN `json:"lsn"`
	Offset    int64     `json:"offset"`
	Timestamp int64     `json:"timestamp"`
}

// CheckpointManager persists Checkpoint to a single JSON file using an
// atomic write-temp/fsync/rename/fsync-directory sequence.
type CheckpointManager struct {
	path string
}

func NewCheckpointManager(dbDir string) *CheckpointManager {
	return &CheckpointManager{path: filepath.Join(dbDir, "checkpoint.json")}
}

// Save atomically persists lsn and the log file's byte length at the
// moment of a quiescent shutdown: RecoverFrom uses offset to skip
// straight past everything already known durable on the next startup.
func (cm *CheckpointManager) Save(lsn types.LSN, offset int64) error {
	cp := Checkpoint{LSN: lsn, Offset: offset, Timestamp: time.Now().Unix()}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tempPath := cm.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp checkpoint: %w", err)
	}

	tempFile, err := os.OpenFile(tempPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open temp checkpoint: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	tempFile.Close()

	if err := os.Rename(tempPath, cm.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	if dir, err := os.Open(filepath.Dir(cm.path)); err == nil {
		dir.Sync()
		dir.Close()
	}

	log.WithField("lsn", lsn).Info("checkpoint saved")
	return nil
}

// Load returns the last saved checkpoint, or a Checkpoint with LSN
// InvalidLSN and Offset 0 (meaning "redo from the start of the log") if
// none exists or the file is corrupt.
func (cm *CheckpointManager) Load() Checkpoint {
	data, err := os.ReadFile(cm.path)
	if err != nil {
		return Checkpoint{LSN: types.InvalidLSN}
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		log.WithError(err).Warn("checkpoint file corrupted, redoing from the start of the log")
		return Checkpoint{LSN: types.InvalidLSN}
	}
	log.WithField("lsn", cp.LSN).
		WithField("age", humanize.Time(time.Unix(cp.Timestamp, 0))).
		Info("checkpoint loaded")
	return cp
}

// Delete removes the checkpoint file, if any.
func (cm *CheckpointManager) Delete() error {
	if err := os.Remove(cm.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Package config assembles the process-wide options recognized by the
// storage core (spec.md §6, "Configuration"). Every subsystem receives its
// options once at construction — there is no package-level mutable flag,
// per spec.md §9's note on the source's global "logging enabled" boolean.
package config

import "time"

// Config bundles the options the disk manager, buffer pool and log manager
// are constructed with. Values are set once and never mutated afterwards.
type Config struct {
	// PageSize records the page size in bytes. Nothing reads it: every
	// page in the data file is page.Size (4096) bytes whatever this says.
	PageSize int
	// BufferPoolSize is the number of frames the buffer pool holds.
	BufferPoolSize int
	// LogBufferSize is the size, in bytes, of each of the log manager's two
	// buffers (log_buffer and flush_buffer).
	LogBufferSize int
	// LogTimeout bounds how long the flush thread waits for a wakeup before
	// checking the log buffer anyway.
	LogTimeout time.Duration
	// EnableLogging turns WAL on. With it false the buffer pool skips the
	// WAL interlock and the log manager's flush thread never starts —
	// used by callers (e.g. bulk loaders) that accept losing durability.
	EnableLogging bool
}

// Default returns the configuration the teacher's own constructors assume
// implicitly (4 KiB pages, generous buffer pool, logging on).
func Default() Config {
	return Config{
		PageSize:       4096,
		BufferPoolSize: 128,
		LogBufferSize:  4096 * 4,
		LogTimeout:     time.Second,
		EnableLogging:  true,
	}
}

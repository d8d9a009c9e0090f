// Package engine provides the storage core of a SynkNode.
//
// An Engine is the single authoritative key-value map of a node. Every
// mutation is persisted as a full JSON snapshot before it is acknowledged,
// so the in-memory map and the file on disk converge after each Set.
//
// Basic usage:
//
//	opts := engine.DefaultOptions("./data")
//	eng, err := engine.Open(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	if err := eng.Set("greeting", "hello world"); err != nil {
//	    log.Printf("write not durable: %v", err)
//	}
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/synknodes/synknode/pkg/metrics"
	"github.com/synknodes/synknode/pkg/persistence"
	"github.com/synknodes/synknode/pkg/synkerr"
)

// ErrClosed is returned by Set after Close.
var ErrClosed = errors.New("engine is closed")

// Options configures where and how the Engine persists its snapshot.
type Options struct {
	// DataDir is the directory holding the snapshot file.
	// It is created automatically if it does not exist.
	DataDir string

	// SnapshotFilename is the snapshot file name (default: "store.json").
	SnapshotFilename string

	// Fsync forces every snapshot to disk before it replaces the previous one.
	Fsync bool
}

// DefaultOptions returns the standard configuration for dataDir.
//
// Defaults:
//   - SnapshotFilename: "store.json"
//   - Fsync: true
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:          dataDir,
		SnapshotFilename: persistence.DefaultFilename,
		Fsync:            true,
	}
}

// Stats is a point-in-time view of the Engine.
type Stats struct {
	Keys                 int
	SnapshotPath         string
	LastSnapshotBytes    int
	LastSnapshotDuration time.Duration
}

// Engine is a thread-safe key-value store backed by one snapshot file.
//
// A single sync.RWMutex guards the map. Readers share it; Set holds it
// exclusively for the whole snapshot write, so writes are totally ordered and
// a slow disk stalls every reader and writer until the write completes.
type Engine struct {
	mu   sync.RWMutex
	data btree.Map[string, string]

	snapshot *persistence.SnapshotFile

	lastSnapshotBytes    int
	lastSnapshotDuration time.Duration
	closed               bool
}

// Open creates DataDir if missing, loads the existing snapshot (if any) and
// returns a ready Engine. A corrupt snapshot aborts Open with a serialization
// error instead of silently starting empty.
func Open(opts Options) (*Engine, error) {
	if opts.DataDir == "" {
		return nil, synkerr.Config("open engine", errors.New("data directory is empty"))
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, synkerr.Storage("create data directory", err)
	}

	snap := persistence.NewSnapshotFile(opts.DataDir, opts.SnapshotFilename, opts.Fsync)
	loaded, err := snap.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	e := &Engine{snapshot: snap}
	for k, v := range loaded {
		e.data.Set(k, v)
	}
	metrics.Keys.Set(float64(e.data.Len()))

	slog.Info("Store opened", "path", snap.Path(), "keys", e.data.Len())
	return e, nil
}

// Get returns the value stored under key and whether it was found.
// Strings are immutable, so the returned value is a copy the caller owns.
func (e *Engine) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.data.Get(key)
}

// Set stores value under key and persists the full snapshot before returning.
//
// If the snapshot write fails, Set returns a storage error but the in-memory
// map keeps the new value: memory and disk diverge until the next successful
// Set rewrites the file.
func (e *Engine) Set(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return synkerr.Storage("set", ErrClosed)
	}

	e.data.Set(key, value)
	metrics.Keys.Set(float64(e.data.Len()))

	if err := e.persistLocked(); err != nil {
		return synkerr.Storage(fmt.Sprintf("persist key %q", key), err)
	}
	return nil
}

// Keys returns a copy of every key. Callers must not rely on the order.
func (e *Engine) Keys() []string {
	keys, _ := e.KeysAndLen()
	return keys
}

// Len returns the number of entries.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.data.Len()
}

// KeysAndLen returns the keys and their count under a single lock acquisition.
func (e *Engine) KeysAndLen() ([]string, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]string, 0, e.data.Len())
	e.data.Scan(func(key, _ string) bool {
		keys = append(keys, key)
		return true
	})
	return keys, len(keys)
}

// Stats returns counters describing the store and its last snapshot.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Keys:                 e.data.Len(),
		SnapshotPath:         e.snapshot.Path(),
		LastSnapshotBytes:    e.lastSnapshotBytes,
		LastSnapshotDuration: e.lastSnapshotDuration,
	}
}

// Close rejects further writes. Every acknowledged Set is already on disk,
// so there is nothing to flush.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	return nil
}

// persistLocked writes the whole map. The caller must hold e.mu for writing.
func (e *Engine) persistLocked() error {
	start := time.Now()

	full := make(map[string]string, e.data.Len())
	e.data.Scan(func(key, value string) bool {
		full[key] = value
		return true
	})

	n, err := e.snapshot.Save(full)
	elapsed := time.Since(start)
	metrics.SnapshotWriteDuration.Observe(elapsed.Seconds())
	if err != nil {
		slog.Error("Snapshot write failed, memory and disk have diverged", "path", e.snapshot.Path(), "error", err)
		return err
	}

	e.lastSnapshotBytes = n
	e.lastSnapshotDuration = elapsed
	metrics.SnapshotBytes.Set(float64(n))
	return nil
}

// Package persistence implements the on-disk snapshot of a SynkNode store.
//
// The snapshot is one JSON object mapping every key to its value. It is
// always rewritten in full: Save writes a temporary file next to the target
// and renames it over the previous snapshot, so a crash mid-write leaves
// either the old or the new file, never a truncated one.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/synknodes/synknode/pkg/synkerr"
)

// DefaultFilename is the snapshot file name inside the data directory.
const DefaultFilename = "store.json"

const tempSuffix = ".tmp"

// SnapshotFile manages the snapshot of one node.
// It does no locking of its own; the store serializes every writer.
type SnapshotFile struct {
	dir   string
	path  string
	fsync bool
}

// NewSnapshotFile returns a SnapshotFile for dir/filename.
// With fsync enabled, Save forces the data to disk before the rename.
func NewSnapshotFile(dir, filename string, fsync bool) *SnapshotFile {
	if filename == "" {
		filename = DefaultFilename
	}
	return &SnapshotFile{
		dir:   dir,
		path:  filepath.Join(dir, filename),
		fsync: fsync,
	}
}

// Path returns the snapshot file path.
func (s *SnapshotFile) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file yields an empty map.
// A file that is not a JSON object of string values is a serialization error:
// the caller is expected to refuse to start rather than discard it.
func (s *SnapshotFile) Load() (map[string]string, error) {
	s.removeStaleTemp()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, synkerr.IO("read snapshot", err)
	}

	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, synkerr.Serialization(fmt.Sprintf("decode snapshot %s", s.path), err)
	}
	if data == nil {
		// "null" document
		data = make(map[string]string)
	}
	return data, nil
}

// Save replaces the snapshot with data and returns the number of bytes written.
func (s *SnapshotFile) Save(data map[string]string) (int, error) {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return 0, synkerr.Serialization("encode snapshot", err)
	}

	tempPath := s.path + tempSuffix
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, synkerr.IO("create temporary snapshot", err)
	}

	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return 0, synkerr.IO("write temporary snapshot", err)
	}
	if s.fsync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = os.Remove(tempPath)
			return 0, synkerr.IO("sync temporary snapshot", err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return 0, synkerr.IO("close temporary snapshot", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return 0, synkerr.IO("replace snapshot", err)
	}

	if s.fsync {
		s.syncDir()
	}
	return len(payload), nil
}

// syncDir makes the rename durable. Not every platform can fsync a
// directory, so failures are only logged.
func (s *SnapshotFile) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		slog.Debug("Snapshot directory sync skipped", "dir", s.dir, "error", err)
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		slog.Debug("Snapshot directory sync failed", "dir", s.dir, "error", err)
	}
}

func (s *SnapshotFile) removeStaleTemp() {
	tempPath := s.path + tempSuffix
	if err := os.Remove(tempPath); err == nil {
		slog.Warn("Removed stale temporary snapshot from an interrupted write", "path", tempPath)
	}
}

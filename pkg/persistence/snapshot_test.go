package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/synknodes/synknode/pkg/synkerr"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	snap := NewSnapshotFile(t.TempDir(), "", true)

	data, err := snap.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty map, got %v", data)
	}
	if filepath.Base(snap.Path()) != DefaultFilename {
		t.Errorf("expected default filename, got %s", snap.Path())
	}
}

func TestSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	snap := NewSnapshotFile(dir, "store.json", true)

	want := map[string]string{"a": "1", "b": "two words", "": "empty key"}
	n, err := snap.Save(want)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(snap.Path())
	if err != nil {
		t.Fatal(err)
	}
	if int64(n) != info.Size() {
		t.Errorf("Save() reported %d bytes, file has %d", n, info.Size())
	}
	if _, err := os.Stat(snap.Path() + tempSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file should not survive a successful save")
	}

	got, err := NewSnapshotFile(dir, "store.json", true).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("key %q: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestSnapshotIsPlainJSONObject(t *testing.T) {
	snap := NewSnapshotFile(t.TempDir(), "", false)
	if _, err := snap.Save(map[string]string{"k": "v"}); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(snap.Path())
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("snapshot is not a JSON object of strings: %v", err)
	}
	if decoded["k"] != "v" {
		t.Errorf("unexpected snapshot content: %s", raw)
	}
}

func TestLoadCorruptSnapshotFails(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"truncated", `{"a": "1"`},
		{"not an object", `["a", "b"]`},
		{"non string value", `{"a": 1}`},
		{"empty file", ``},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			snap := NewSnapshotFile(dir, "", true)
			if err := os.WriteFile(snap.Path(), []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := snap.Load()
			if !errors.Is(err, synkerr.ErrSerialization) {
				t.Fatalf("expected serialization error, got %v", err)
			}
		})
	}
}

func TestLoadNullDocumentIsEmpty(t *testing.T) {
	snap := NewSnapshotFile(t.TempDir(), "", true)
	if err := os.WriteFile(snap.Path(), []byte("null"), 0644); err != nil {
		t.Fatal(err)
	}

	data, err := snap.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if data == nil || len(data) != 0 {
		t.Errorf("expected non-nil empty map, got %#v", data)
	}
}

func TestLoadRemovesStaleTemp(t *testing.T) {
	snap := NewSnapshotFile(t.TempDir(), "", true)
	if err := os.WriteFile(snap.Path()+tempSuffix, []byte(`{"half`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := snap.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := os.Stat(snap.Path() + tempSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale temporary snapshot should be removed")
	}
}

func TestSaveFailureIsIOError(t *testing.T) {
	dir := t.TempDir()
	snap := NewSnapshotFile(dir, "", true)

	// A non-empty directory at the target path makes the rename fail.
	if err := os.MkdirAll(filepath.Join(snap.Path(), "blocker"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := snap.Save(map[string]string{"a": "1"})
	if !errors.Is(err, synkerr.ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
	if _, statErr := os.Stat(snap.Path() + tempSuffix); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("temporary file should be cleaned up after a failed save")
	}
}

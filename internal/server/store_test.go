package server

import (
	"errors"
	"sync"
	"testing"

	"github.com/synknodes/synknode/pkg/engine"
	"github.com/synknodes/synknode/pkg/synkerr"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.Open(engine.DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

// failingStore accepts reads and rejects every write.
type failingStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFailingStore() *failingStore {
	return &failingStore{data: make(map[string]string)}
}

func (f *failingStore) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *failingStore) Set(key, value string) error {
	return synkerr.Storage("persist key", errors.New("disk full"))
}

func (f *failingStore) Keys() []string {
	return nil
}

// panicStore panics on every call, to exercise the recovery middleware.
type panicStore struct{}

func (panicStore) Get(string) (string, bool) { panic("boom") }
func (panicStore) Set(string, string) error  { panic("boom") }
func (panicStore) Keys() []string            { panic("boom") }

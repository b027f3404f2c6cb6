package snapshot

import (
	"errors"
	"sync"
)

// ErrBackendDown is returned by a MemoryBackend while Fail is set
var ErrBackendDown = errors.New("snapshot backend unavailable")

// MemoryBackend keeps persisted values in a map. Tests toggle Fail to
// simulate a broken disk.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string][]byte
	fail   bool
	saves  int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

// SetFail makes subsequent saves fail (true) or succeed (false)
func (b *MemoryBackend) SetFail(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = fail
}

func (b *MemoryBackend) LoadAll() (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string][]byte, len(b.values))
	for k, v := range b.values {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (b *MemoryBackend) Save(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.saves++
	if b.fail {
		return ErrBackendDown
	}
	b.values[key] = append([]byte(nil), value...)
	return nil
}

// Persisted returns what the backend holds for key
func (b *MemoryBackend) Persisted(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}

func (b *MemoryBackend) Close() error {
	return nil
}

// Saves returns how many writes were attempted
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

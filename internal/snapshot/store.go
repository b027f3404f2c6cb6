// Package snapshot keeps the current day's counters in memory and persists
// them to a local key/value backend so they survive restarts.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
)

// Backend is the physical key/value persistence behind a Store
type Backend interface {
	LoadAll() (map[string][]byte, error)
	Save(key string, value []byte) error
	Close() error
}

// Store is an in-memory key/value cache written through to a Backend.
// The in-memory value is authoritative for the life of the process: a failed
// backend write leaves the key dirty for the background flusher.
type Store struct {
	mu      sync.Mutex
	backend Backend
	values  map[string][]byte
	dirty   map[string]struct{}
}

// Open loads every persisted key from backend
func Open(backend Backend) (*Store, error) {
	values, err := backend.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if values == nil {
		values = make(map[string][]byte)
	}
	return &Store{
		backend: backend,
		values:  values,
		dirty:   make(map[string]struct{}),
	}, nil
}

// Get returns a copy of the value stored under key
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// Set stores value under key. The in-memory value is updated even when the
// backend write fails; it reports whether the value reached the backend.
func (s *Store) Set(key string, value []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	if err := s.backend.Save(key, value); err != nil {
		s.dirty[key] = struct{}{}
		logger.Warn("Snapshot write deferred", "key", key, "error", err)
		return false
	}
	delete(s.dirty, key)
	return true
}

// GetJSON decodes the value under key into v. It reports false when the key
// is absent.
func (s *Store) GetJSON(key string, v any) (bool, error) {
	data, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to decode snapshot %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key
func (s *Store) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %q: %w", key, err)
	}
	s.Set(key, data)
	return nil
}

// Dirty lists keys whose latest value has not reached the backend
func (s *Store) Dirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush retries every dirty key once. It returns the first error seen;
// keys that still fail stay dirty.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for key := range s.dirty {
		if err := s.backend.Save(key, s.values[key]); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to flush %q: %w", key, err)
			}
			continue
		}
		delete(s.dirty, key)
	}
	return firstErr
}

// Run flushes dirty keys every interval until ctx is done
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if len(s.Dirty()) == 0 {
				continue
			}
			if err := s.Flush(); err != nil {
				logger.Warn("Snapshot flush failed", "error", err)
			}
		}
	}
}

// Close flushes pending keys and closes the backend
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		logger.Warn("Snapshot flush on close failed", "error", err)
	}
	return s.backend.Close()
}

// Namespace scopes keys to a single user
type Namespace struct {
	store  *Store
	prefix string
}

// ForUser returns the key namespace of userID
func (s *Store) ForUser(userID string) Namespace {
	return Namespace{store: s, prefix: "user/" + userID + "/"}
}

// Key returns the fully qualified key for name
func (n Namespace) Key(name string) string {
	return n.prefix + name
}

func (n Namespace) GetJSON(name string, v any) (bool, error) {
	return n.store.GetJSON(n.Key(name), v)
}

func (n Namespace) SetJSON(name string, v any) error {
	return n.store.SetJSON(n.Key(name), v)
}

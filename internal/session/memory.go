package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	updated time.Time
}

// MemoryStore keeps values in process memory. Values are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]memoryEntry),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[sid][key]
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, ok := s.data[sid]
	if !ok {
		vals = make(map[string]memoryEntry)
		s.data[sid] = vals
	}
	vals[key] = memoryEntry{value: value, updated: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, ok := s.data[sid]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(vals, k)
	}
	if len(vals) == 0 {
		delete(s.data, sid)
	}
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for sid, vals := range s.data {
		if newest(vals).Before(olderThan) {
			n += int64(len(vals))
			delete(s.data, sid)
		}
	}
	return n, nil
}

func newest(vals map[string]memoryEntry) time.Time {
	var t time.Time
	for _, e := range vals {
		if e.updated.After(t) {
			t = e.updated
		}
	}
	return t
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) Close() error { return nil }

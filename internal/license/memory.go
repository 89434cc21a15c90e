package license

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process SettingsStore. It backs dry runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string]json.RawMessage
}

var _ SettingsStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]map[string]json.RawMessage)}
}

// Get implements SettingsStore.
func (s *MemoryStore) Get(_ context.Context, namespace, field string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[namespace][field]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set implements SettingsStore.
func (s *MemoryStore) Set(_ context.Context, namespace, field string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[namespace] == nil {
		s.values[namespace] = make(map[string]json.RawMessage)
	}
	s.values[namespace][field] = bytes.Clone(value)
	return nil
}

// Delete implements SettingsStore.
func (s *MemoryStore) Delete(_ context.Context, namespace, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values[namespace], field)
	return nil
}

// Snapshot returns a deep copy of the store contents.
func (s *MemoryStore) Snapshot() map[string]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]string, len(s.values))
	for ns, fields := range s.values {
		if len(fields) == 0 {
			continue
		}
		copied := make(map[string]string, len(fields))
		for k, v := range fields {
			copied[k] = string(v)
		}
		out[ns] = copied
	}
	return out
}

// Package store provides the Key-Value Store the session persists into.
// Values are JSON documents addressed by a fixed name ("config",
// "research_notes"). Two backends exist: an in-memory map and SQLite.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// KV is the key-value contract used by settings and research notes.
type KV interface {
	// Get decodes the value stored under name into dst. It reports false
	// (and leaves dst untouched) when nothing is stored.
	Get(ctx context.Context, name string, dst any) (bool, error)
	// Set stores value (JSON-encoded) under name, replacing any previous value.
	Set(ctx context.Context, name string, value any) error
	// Delete removes name. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error
}

// Well-known names.
const (
	NameConfig        = "config"
	NameResearchNotes = "research_notes"
)

// MemoryStore is a KV backed by a map. Values go through JSON so callers
// observe the same copy semantics as the SQLite store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, name string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[name]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	m.mu.Lock()
	m.data[name] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.data, name)
	m.mu.Unlock()
	return nil
}

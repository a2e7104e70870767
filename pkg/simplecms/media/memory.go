// Package media provides MediaResolver implementations that let the content
// service check that media fields point at objects which actually exist.
package media

import (
	"context"
	"sync"

	"github.com/tendant/simple-cms/pkg/simplecms"
)

// Memory is an in-memory set of known media keys
type Memory struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

var _ simplecms.MediaResolver = (*Memory)(nil)

// NewMemory creates a resolver that knows the given keys
func NewMemory(keys ...string) *Memory {
	m := &Memory{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		m.keys[k] = struct{}{}
	}
	return m
}

// Add registers keys as existing media
func (m *Memory) Add(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.keys[k] = struct{}{}
	}
}

// Remove forgets keys
func (m *Memory) Remove(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[key]
	return ok, nil
}

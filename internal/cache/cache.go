// Package cache provides the key-value collaborator used by the
// distance-matrix result cache and the geofence membership store.
package cache

import (
	"context"
	"sync"
	"time"
)

// KV is the minimal key-value surface the core depends on. Get returns
// (nil, nil) when the key is absent; an error means the backing store
// is unavailable and callers should degrade, not fail.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process KV used when Redis is not configured and in
// tests. TTL expiry is checked lazily on read.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memEntry
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memEntry)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, nil
	}
	return e.value, nil
}

func (m *Memory) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

package storage

import (
	"sync"

	"github.com/example/fleet-tracking/internal/models"
)

// HistoryStore archives accepted fixes for later trip summaries. The
// tracking core never blocks on it; see Archiver.
type HistoryStore interface {
	SaveFix(fix models.Fix) error
}

// MemoryStore keeps archived fixes in memory, used when no Postgres
// DSN is configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	fixes map[string][]models.Fix
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fixes: make(map[string][]models.Fix)}
}

func (m *MemoryStore) SaveFix(fix models.Fix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixes[fix.EntityID] = append(m.fixes[fix.EntityID], fix)
	return nil
}

func (m *MemoryStore) History(entityID string) []models.Fix {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Fix, len(m.fixes[entityID]))
	copy(out, m.fixes[entityID])
	return out
}

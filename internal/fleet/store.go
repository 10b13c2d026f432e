// Package fleet holds the authoritative in-memory map of live entity
// state. Writes for different entities never contend: the map is
// sharded by entity id and each shard carries its own lock.
package fleet

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/example/fleet-tracking/internal/models"
)

// ErrStaleFix marks a fix whose timestamp is not newer than the stored
// state. The stored state is left unchanged.
var ErrStaleFix = errors.New("fix timestamp not newer than stored state")

const shardCount = 32

// FixListener receives accepted fixes after the store has been
// updated. Listeners must not block; slow consumers should buffer.
// The geofence engine subscribes here instead of being called inline,
// so a geofencing failure can never reject a fix.
type FixListener interface {
	OnFixAccepted(fix models.Fix)
}

type shard struct {
	mu       sync.RWMutex
	entities map[string]*models.EntityState
}

type Store struct {
	shards [shardCount]shard

	subMu     sync.RWMutex
	listeners []FixListener
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].entities = make(map[string]*models.EntityState)
	}
	return s
}

func (s *Store) shardFor(entityID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	return &s.shards[h.Sum32()%shardCount]
}

// Subscribe registers a listener for accepted fixes. Call before
// ingestion starts; registration is not synchronized with in-flight
// ingests beyond the internal lock.
func (s *Store) Subscribe(l FixListener) {
	s.subMu.Lock()
	s.listeners = append(s.listeners, l)
	s.subMu.Unlock()
}

// Ingest atomically applies a fix for its entity. On first sight of an
// entity id the state is created; afterwards the previous current fix
// shifts into the rolling buffer and the sequence counter increments.
// Out-of-order and duplicate timestamps return ErrStaleFix.
func (s *Store) Ingest(fix models.Fix) error {
	sh := s.shardFor(fix.EntityID)
	sh.mu.Lock()
	st, ok := sh.entities[fix.EntityID]
	if !ok {
		sh.entities[fix.EntityID] = &models.EntityState{Current: fix, Seq: 1}
		sh.mu.Unlock()
		s.notify(fix)
		return nil
	}
	if !fix.Timestamp.After(st.Current.Timestamp) {
		sh.mu.Unlock()
		return ErrStaleFix
	}
	prev := st.Current
	st.Prev = &prev
	st.Current = fix
	st.Seq++
	sh.mu.Unlock()
	s.notify(fix)
	return nil
}

func (s *Store) notify(fix models.Fix) {
	s.subMu.RLock()
	ls := s.listeners
	s.subMu.RUnlock()
	for _, l := range ls {
		l.OnFixAccepted(fix)
	}
}

// Get returns a copy of the entity's state.
func (s *Store) Get(entityID string) (models.EntityState, bool) {
	sh := s.shardFor(entityID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.entities[entityID]
	if !ok {
		return models.EntityState{}, false
	}
	return copyState(st), true
}

// Snapshot returns a point-in-time copy of all entity states. Each
// shard is locked only for the duration of its own copy, so concurrent
// ingestion is blocked no longer than the copy itself.
func (s *Store) Snapshot() []models.EntityState {
	out := make([]models.EntityState, 0, s.Count())
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, st := range sh.entities {
			out = append(out, copyState(st))
		}
		sh.mu.RUnlock()
	}
	return out
}

// ListActive filters the snapshot down to entities updated within
// maxAge of now.
func (s *Store) ListActive(maxAge time.Duration) []models.EntityState {
	cutoff := time.Now().Add(-maxAge)
	all := s.Snapshot()
	out := all[:0]
	for _, st := range all {
		if !st.Current.Timestamp.Before(cutoff) {
			out = append(out, st)
		}
	}
	return out
}

func (s *Store) Count() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entities)
		sh.mu.RUnlock()
	}
	return n
}

func copyState(st *models.EntityState) models.EntityState {
	out := *st
	if st.Prev != nil {
		prev := *st.Prev
		out.Prev = &prev
	}
	return out
}

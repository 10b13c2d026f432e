// Package dispatch fans out zone transition events to live tracking
// clients. Delivery is best-effort; a slow or dead client never blocks
// geofence evaluation.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/fleet-tracking/internal/models"
)

// WSSession represents one connected tracking client.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ev models.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// WSRegistry holds connected tracking sessions and implements
// geofence.EventSink by broadcasting every event to all of them.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{
		sessions: make(map[string]*WSSession),
		logger:   logger.With("component", "ws_dispatch"),
	}
}

func (r *WSRegistry) Add(clientID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[clientID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[clientID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, clientID)
	}
}

// Publish broadcasts ev to every connected session. Sessions that fail
// to write are dropped from the registry.
func (r *WSRegistry) Publish(ev models.TransitionEvent) error {
	r.mu.RLock()
	type entry struct {
		id string
		s  *WSSession
	}
	targets := make([]entry, 0, len(r.sessions))
	for id, s := range r.sessions {
		targets = append(targets, entry{id, s})
	}
	r.mu.RUnlock()

	for _, t := range targets {
		if err := t.s.Send(ev); err != nil {
			r.logger.Warn("ws send failed, dropping session", "client_id", t.id, "error", err)
			r.Remove(t.id)
		}
	}
	return nil
}

package storage

import (
	"log/slog"

	"github.com/example/fleet-tracking/internal/models"
)

// Archiver decouples fix archiving from the ingestion path with a
// buffered channel and a single writer goroutine. When the buffer is
// full the fix is dropped, not queued: history is best-effort and must
// never apply backpressure to tracking.
type Archiver struct {
	store  HistoryStore
	ch     chan models.Fix
	done   chan struct{}
	logger *slog.Logger
}

func NewArchiver(store HistoryStore, buffer int, logger *slog.Logger) *Archiver {
	if buffer <= 0 {
		buffer = 1024
	}
	a := &Archiver{
		store:  store,
		ch:     make(chan models.Fix, buffer),
		done:   make(chan struct{}),
		logger: logger.With("component", "archiver"),
	}
	go a.run()
	return a
}

// OnFixAccepted implements fleet.FixListener.
func (a *Archiver) OnFixAccepted(fix models.Fix) {
	select {
	case a.ch <- fix:
	default:
		a.logger.Warn("archive buffer full, dropping fix", "entity_id", fix.EntityID)
	}
}

func (a *Archiver) run() {
	defer close(a.done)
	for fix := range a.ch {
		if err := a.store.SaveFix(fix); err != nil {
			a.logger.Warn("archive write failed", "entity_id", fix.EntityID, "error", err)
		}
	}
}

// Close drains buffered fixes and stops the writer.
func (a *Archiver) Close() {
	close(a.ch)
	<-a.done
}

// Package geofence tracks per-entity zone membership and emits
// ENTER/EXIT transition events.
//
// Each (entity, zone) pair runs a two-state machine. Unknown pairs are
// treated as outside, so the first fix inside a zone emits ENTER and
// never EXIT-without-ENTER. Evaluation is idempotent: fixes that do
// not flip membership produce no event, which keeps GPS jitter at a
// boundary from storming consumers. A hysteresis margin (requiring the
// flip to persist across the last K fixes) is a possible extension
// point; the base engine applies flips on a single fix.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/fleet-tracking/internal/geo"
	"github.com/example/fleet-tracking/internal/models"
	"github.com/example/fleet-tracking/internal/observability"
)

// ErrMembershipUnavailable marks a failed membership read/write. The
// evaluation for that fix should be retried; the underlying fix has
// already been accepted by the fleet store.
var ErrMembershipUnavailable = errors.New("membership store unavailable")

// EventSink receives emitted transition events. Delivery is
// best-effort; sink failures are logged, never propagated.
type EventSink interface {
	Publish(ev models.TransitionEvent) error
}

type Engine struct {
	zones   []models.Zone
	members MembershipStore
	sinks   []EventSink
	logger  *slog.Logger
}

func NewEngine(zones []models.Zone, members MembershipStore, logger *slog.Logger) *Engine {
	return &Engine{
		zones:   zones,
		members: members,
		logger:  logger.With("component", "geofence"),
	}
}

// AddSink registers an event consumer. Call before evaluation starts.
func (e *Engine) AddSink(s EventSink) { e.sinks = append(e.sinks, s) }

// OnFixAccepted implements fleet.FixListener. Geofencing is
// best-effort: evaluation errors are logged and dropped so ingestion
// is never gated on this path.
func (e *Engine) OnFixAccepted(fix models.Fix) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := e.Evaluate(ctx, fix); err != nil {
		e.logger.Warn("geofence evaluation failed", "entity_id", fix.EntityID, "error", err)
	}
}

// Evaluate checks the fix against every zone and emits one transition
// event per membership flip. New state is persisted before the event
// is published.
func (e *Engine) Evaluate(ctx context.Context, fix models.Fix) ([]models.TransitionEvent, error) {
	var events []models.TransitionEvent
	for _, zone := range e.zones {
		inside := Contains(zone, fix.Loc)

		prev, err := e.members.Get(ctx, fix.EntityID, zone.ID)
		if err != nil {
			return events, fmt.Errorf("%w: %v", ErrMembershipUnavailable, err)
		}
		wasInside := prev == StateInside

		if inside == wasInside {
			continue
		}

		next := StateOutside
		evType := models.TransitionExit
		if inside {
			next = StateInside
			evType = models.TransitionEnter
		}
		if err := e.members.Set(ctx, fix.EntityID, zone.ID, next); err != nil {
			return events, fmt.Errorf("%w: %v", ErrMembershipUnavailable, err)
		}

		ev := models.TransitionEvent{
			ID:        uuid.NewString(),
			EntityID:  fix.EntityID,
			ZoneID:    zone.ID,
			Type:      evType,
			Loc:       fix.Loc,
			Timestamp: fix.Timestamp,
		}
		events = append(events, ev)
		observability.GeofenceEventsTotal.WithLabelValues(string(evType)).Inc()
		e.publish(ev)
	}
	return events, nil
}

func (e *Engine) publish(ev models.TransitionEvent) {
	for _, s := range e.sinks {
		if err := s.Publish(ev); err != nil {
			e.logger.Warn("event sink publish failed", "zone_id", ev.ZoneID, "error", err)
		}
	}
}

// Contains reports whether p falls inside the zone. Circles test
// haversine distance against the radius; polygons use ray casting.
func Contains(zone models.Zone, p models.Coord) bool {
	switch zone.Kind {
	case models.ZoneCircle:
		return geo.Haversine(zone.Center, p) <= zone.RadiusMeters
	case models.ZonePolygon:
		return pointInPolygon(p, zone.Vertices)
	default:
		return false
	}
}

func pointInPolygon(p models.Coord, vertices []models.Coord) bool {
	if len(vertices) < 3 {
		return false
	}
	inside := false
	j := len(vertices) - 1
	for i := 0; i < len(vertices); i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) &&
			p.Lon < (vj.Lon-vi.Lon)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat)+vi.Lon {
			inside = !inside
		}
		j = i
	}
	return inside
}

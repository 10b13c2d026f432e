// Package mapmatch snaps raw GPS points to known road segments.
package mapmatch

import (
	"github.com/example/fleet-tracking/internal/geo"
	"github.com/example/fleet-tracking/internal/models"
)

// Match is the result of snapping a point to a segment.
type Match struct {
	Segment        models.RoadSegment
	DistanceMeters float64
}

// SegmentSource supplies candidate road segments near a point. It is
// the boundary to the external map-data provider; callers are expected
// to pre-filter to a bounded local set via a spatial index.
type SegmentSource interface {
	SegmentsNear(p models.Coord, radiusMeters float64) []models.RoadSegment
}

// SnapToNearestSegment returns the candidate segment closest to p.
// Ties keep the first-encountered segment, so iteration order is
// stable. ok is false when candidates is empty; that is not an error.
func SnapToNearestSegment(p models.Coord, candidates []models.RoadSegment) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}
	best := Match{Segment: candidates[0], DistanceMeters: geo.PointToSegment(p, candidates[0].Start, candidates[0].End)}
	for _, seg := range candidates[1:] {
		if d := geo.PointToSegment(p, seg.Start, seg.End); d < best.DistanceMeters {
			best = Match{Segment: seg, DistanceMeters: d}
		}
	}
	return best, true
}

// Matcher binds a segment source to the snap operation for callers
// that want corrected positions without managing candidates.
type Matcher struct {
	Source       SegmentSource
	SearchRadius float64
}

// Snap fetches candidates around p and snaps to the nearest one.
func (m *Matcher) Snap(p models.Coord) (Match, bool) {
	radius := m.SearchRadius
	if radius <= 0 {
		radius = 100
	}
	return SnapToNearestSegment(p, m.Source.SegmentsNear(p, radius))
}

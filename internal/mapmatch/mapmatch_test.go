package mapmatch

import (
	"testing"

	"github.com/example/fleet-tracking/internal/models"
)

func TestSnapEmptyCandidates(t *testing.T) {
	_, ok := SnapToNearestSegment(models.Coord{Lat: 0, Lon: 0}, nil)
	if ok {
		t.Fatal("expected no match for empty candidate set")
	}
}

func TestSnapPicksNearest(t *testing.T) {
	p := models.Coord{Lat: 0.001, Lon: 0.005}
	segs := []models.RoadSegment{
		{ID: "far", Start: models.Coord{Lat: 0.1, Lon: 0}, End: models.Coord{Lat: 0.1, Lon: 0.01}},
		{ID: "near", Start: models.Coord{Lat: 0, Lon: 0}, End: models.Coord{Lat: 0, Lon: 0.01}},
	}
	m, ok := SnapToNearestSegment(p, segs)
	if !ok {
		t.Fatal("expected match")
	}
	if m.Segment.ID != "near" {
		t.Fatalf("expected near, got %s", m.Segment.ID)
	}
	if m.DistanceMeters <= 0 {
		t.Fatalf("expected positive distance, got %f", m.DistanceMeters)
	}
}

func TestSnapTieKeepsFirst(t *testing.T) {
	p := models.Coord{Lat: 0.001, Lon: 0.005}
	seg := models.RoadSegment{Start: models.Coord{Lat: 0, Lon: 0}, End: models.Coord{Lat: 0, Lon: 0.01}}
	a, b := seg, seg
	a.ID = "a"
	b.ID = "b"
	m, _ := SnapToNearestSegment(p, []models.RoadSegment{a, b})
	if m.Segment.ID != "a" {
		t.Fatalf("tie should keep first-encountered, got %s", m.Segment.ID)
	}
}

type fakeSource struct{ segs []models.RoadSegment }

func (f *fakeSource) SegmentsNear(p models.Coord, radiusMeters float64) []models.RoadSegment {
	return f.segs
}

func TestMatcherSnap(t *testing.T) {
	src := &fakeSource{segs: []models.RoadSegment{
		{ID: "s1", Start: models.Coord{Lat: 0, Lon: 0}, End: models.Coord{Lat: 0, Lon: 0.01}},
	}}
	m := &Matcher{Source: src}
	got, ok := m.Snap(models.Coord{Lat: 0.0001, Lon: 0.005})
	if !ok || got.Segment.ID != "s1" {
		t.Fatalf("expected s1 match, got %+v ok=%v", got, ok)
	}
}

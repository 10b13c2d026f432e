package motion

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/fleet-tracking/internal/geo"
	"github.com/example/fleet-tracking/internal/models"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixAt(lat, lon float64, at time.Time) models.Fix {
	return models.Fix{EntityID: "V1", Loc: models.Coord{Lat: lat, Lon: lon}, Timestamp: at}
}

func TestInterpolateMidpoint(t *testing.T) {
	a := fixAt(19.4326, -99.1332, t0)
	b := fixAt(19.4350, -99.1300, t0.Add(60*time.Second))
	got, err := Interpolate(a, b, t0.Add(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	wantLat := (19.4326 + 19.4350) / 2
	wantLon := (-99.1332 + -99.1300) / 2
	if math.Abs(got.Loc.Lat-wantLat) > 1e-9 || math.Abs(got.Loc.Lon-wantLon) > 1e-9 {
		t.Fatalf("expected midpoint (%f,%f), got (%f,%f)", wantLat, wantLon, got.Loc.Lat, got.Loc.Lon)
	}
}

func TestInterpolateBoundaryExact(t *testing.T) {
	a := fixAt(1, 1, t0)
	b := fixAt(2, 2, t0.Add(time.Minute))
	gotA, err := Interpolate(a, b, a.Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if gotA != a {
		t.Fatalf("expected exact A at lower boundary, got %+v", gotA)
	}
	gotB, err := Interpolate(a, b, b.Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if gotB != b {
		t.Fatalf("expected exact B at upper boundary, got %+v", gotB)
	}
}

func TestInterpolateOutOfRange(t *testing.T) {
	a := fixAt(1, 1, t0)
	b := fixAt(2, 2, t0.Add(time.Minute))
	if _, err := Interpolate(a, b, t0.Add(-time.Second)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange before window, got %v", err)
	}
	if _, err := Interpolate(a, b, t0.Add(2*time.Minute)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange after window, got %v", err)
	}
}

func TestInterpolateUnorderedFixes(t *testing.T) {
	a := fixAt(1, 1, t0.Add(time.Minute))
	b := fixAt(2, 2, t0)
	if _, err := Interpolate(a, b, t0.Add(30*time.Second)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for unordered fixes, got %v", err)
	}
}

func TestInterpolateSpeed(t *testing.T) {
	a := fixAt(0, 0, t0)
	a.SpeedMps = 10
	b := fixAt(0, 0.01, t0.Add(100*time.Second))
	b.SpeedMps = 20
	got, err := Interpolate(a, b, t0.Add(50*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.SpeedMps-15) > 1e-9 {
		t.Fatalf("expected interpolated speed 15, got %f", got.SpeedMps)
	}
}

func TestEstimateFromMotionDistance(t *testing.T) {
	fix := fixAt(19.4326, -99.1332, t0)
	fix.SpeedMps = 10
	fix.Heading = 90
	got := EstimateFromMotion(fix, 30*time.Second)
	d := geo.Haversine(fix.Loc, got.Loc)
	if math.Abs(d-300) > 1 {
		t.Fatalf("expected ~300m travelled, got %f", d)
	}
	if !got.Timestamp.Equal(t0.Add(30 * time.Second)) {
		t.Fatalf("timestamp not advanced: %s", got.Timestamp)
	}
}

func TestEstimateFromMotionStationary(t *testing.T) {
	fix := fixAt(1, 1, t0)
	fix.SpeedMps = 0
	if got := EstimateFromMotion(fix, time.Minute); got.Loc != fix.Loc {
		t.Fatalf("stationary entity should not move, got %+v", got.Loc)
	}
}

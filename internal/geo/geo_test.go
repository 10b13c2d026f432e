package geo

import (
	"math"
	"testing"

	"github.com/example/fleet-tracking/internal/models"
)

func TestHaversineZero(t *testing.T) {
	p := models.Coord{Lat: 19.4326, Lon: -99.1332}
	if d := Haversine(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := models.Coord{Lat: 19.4326, Lon: -99.1332}
	b := models.Coord{Lat: 19.4350, Lon: -99.1300}
	if Haversine(a, b) != Haversine(b, a) {
		t.Fatalf("haversine not symmetric")
	}
}

func TestHaversineOneDegreeLongitudeAtEquator(t *testing.T) {
	a := models.Coord{Lat: 0, Lon: 0}
	b := models.Coord{Lat: 0, Lon: 1}
	d := Haversine(a, b)
	// one degree of longitude at the equator is about 111.19 km
	if math.Abs(d-111190) > 1112 {
		t.Fatalf("expected ~111.19km, got %fm", d)
	}
}

func TestHaversineAntipodal(t *testing.T) {
	a := models.Coord{Lat: 0, Lon: 0}
	b := models.Coord{Lat: 0, Lon: 180}
	d := Haversine(a, b)
	if math.IsNaN(d) {
		t.Fatal("antipodal distance is NaN")
	}
	half := math.Pi * earthRadiusMeters
	if math.Abs(d-half) > 1 {
		t.Fatalf("expected half circumference %f, got %f", half, d)
	}
}

func TestBearingCardinal(t *testing.T) {
	origin := models.Coord{Lat: 0, Lon: 0}
	cases := []struct {
		to   models.Coord
		want float64
	}{
		{models.Coord{Lat: 1, Lon: 0}, 0},
		{models.Coord{Lat: 0, Lon: 1}, 90},
		{models.Coord{Lat: -1, Lon: 0}, 180},
		{models.Coord{Lat: 0, Lon: -1}, 270},
	}
	for _, c := range cases {
		got := Bearing(origin, c.to)
		if math.Abs(got-c.want) > 0.01 {
			t.Errorf("bearing to %+v: want %f got %f", c.to, c.want, got)
		}
	}
}

func TestBearingRange(t *testing.T) {
	a := models.Coord{Lat: 10, Lon: 10}
	b := models.Coord{Lat: 5, Lon: -20}
	got := Bearing(a, b)
	if got < 0 || got >= 360 {
		t.Fatalf("bearing out of [0,360): %f", got)
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	p := models.Coord{Lat: 19.4326, Lon: -99.1332}
	q := Destination(p, 45, 1000)
	if d := Haversine(p, q); math.Abs(d-1000) > 1 {
		t.Fatalf("expected 1000m from origin, got %f", d)
	}
	if b := Bearing(p, q); math.Abs(b-45) > 0.5 {
		t.Fatalf("expected bearing ~45, got %f", b)
	}
}

func TestDestinationZeroDistance(t *testing.T) {
	p := models.Coord{Lat: 1, Lon: 2}
	if q := Destination(p, 123, 0); q != p {
		t.Fatalf("expected identity, got %+v", q)
	}
}

func TestPointToSegmentDegenerate(t *testing.T) {
	p := models.Coord{Lat: 0, Lon: 1}
	s := models.Coord{Lat: 0, Lon: 0}
	got := PointToSegment(p, s, s)
	want := Haversine(p, s)
	if got != want {
		t.Fatalf("degenerate segment: want %f got %f", want, got)
	}
}

func TestPointToSegmentPerpendicular(t *testing.T) {
	// segment along the equator, point 0.01 deg north of its midpoint
	start := models.Coord{Lat: 0, Lon: 0}
	end := models.Coord{Lat: 0, Lon: 0.02}
	p := models.Coord{Lat: 0.01, Lon: 0.01}
	got := PointToSegment(p, start, end)
	want := Haversine(p, models.Coord{Lat: 0, Lon: 0.01})
	if math.Abs(got-want) > 1 {
		t.Fatalf("perpendicular distance: want %f got %f", want, got)
	}
}

func TestPointToSegmentClampsToEndpoint(t *testing.T) {
	start := models.Coord{Lat: 0, Lon: 0}
	end := models.Coord{Lat: 0, Lon: 0.01}
	p := models.Coord{Lat: 0, Lon: 0.03}
	got := PointToSegment(p, start, end)
	want := Haversine(p, end)
	if math.Abs(got-want) > 1 {
		t.Fatalf("expected clamp to end: want %f got %f", want, got)
	}
}

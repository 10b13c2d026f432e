// Package geo holds the pure spherical-geometry kernel. Every function
// is side-effect-free and safe for concurrent use.
package geo

import (
	"math"

	"github.com/example/fleet-tracking/internal/models"
)

const earthRadiusMeters = 6371000.0

const (
	MetersPerKilometer = 1000.0
	MetersPerMile      = 1609.344
)

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Haversine returns the great-circle distance between two points in
// meters. The atan2 form stays numerically stable for coincident and
// antipodal points; identical coordinates return exactly 0.
func Haversine(a, b models.Coord) float64 {
	if a.Lat == b.Lat && a.Lon == b.Lon {
		return 0
	}
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Bearing returns the initial great-circle bearing from a to b in
// degrees, normalized to [0, 360).
func Bearing(a, b models.Coord) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := toDeg(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// Destination returns the point reached by travelling distanceMeters
// from p along the given bearing (degrees) on a great circle.
func Destination(p models.Coord, bearingDeg, distanceMeters float64) models.Coord {
	if distanceMeters == 0 {
		return p
	}
	lat1 := toRad(p.Lat)
	lon1 := toRad(p.Lon)
	brng := toRad(bearingDeg)
	dr := distanceMeters / earthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(dr) + math.Cos(lat1)*math.Sin(dr)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(dr)*math.Cos(lat1),
		math.Cos(dr)-math.Sin(lat1)*math.Sin(lat2),
	)
	// normalize longitude to [-180, 180)
	lon2 = math.Mod(lon2+3*math.Pi, 2*math.Pi) - math.Pi
	return models.Coord{Lat: toDeg(lat2), Lon: toDeg(lon2)}
}

// PointToSegment returns the distance in meters from p to the segment
// [segStart, segEnd], clamping the projection parameter t to [0,1].
// A degenerate segment (start == end) reduces to point distance.
// The projection uses a local equirectangular approximation, which is
// accurate at road-segment scale.
func PointToSegment(p, segStart, segEnd models.Coord) float64 {
	if segStart.Lat == segEnd.Lat && segStart.Lon == segEnd.Lon {
		return Haversine(p, segStart)
	}
	// project into a flat frame centered on segStart
	cosLat := math.Cos(toRad(segStart.Lat))
	ax, ay := 0.0, 0.0
	bx := toRad(segEnd.Lon-segStart.Lon) * cosLat
	by := toRad(segEnd.Lat - segStart.Lat)
	px := toRad(p.Lon-segStart.Lon) * cosLat
	py := toRad(p.Lat - segStart.Lat)

	dx, dy := bx-ax, by-ay
	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := models.Coord{
		Lat: segStart.Lat + t*(segEnd.Lat-segStart.Lat),
		Lon: segStart.Lon + t*(segEnd.Lon-segStart.Lon),
	}
	return Haversine(p, closest)
}

// Package motion estimates positions between or beyond known fixes.
// Both operations are pure functions over immutable inputs.
package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/fleet-tracking/internal/geo"
	"github.com/example/fleet-tracking/internal/models"
)

// ErrOutOfRange is returned when interpolation is requested outside
// the time window of the bounding fixes. Callers fall back to
// dead-reckoning or report the position as unknown.
var ErrOutOfRange = errors.New("target time outside fix window")

// Interpolate returns the linearly interpolated fix at targetTime,
// which must satisfy a.Timestamp <= targetTime <= b.Timestamp. The
// boundaries are exact: targetTime == a.Timestamp yields a, and
// targetTime == b.Timestamp yields b.
func Interpolate(a, b models.Fix, targetTime time.Time) (models.Fix, error) {
	if !a.Timestamp.Before(b.Timestamp) {
		return models.Fix{}, fmt.Errorf("%w: fixes not ordered (%s >= %s)", ErrOutOfRange, a.Timestamp, b.Timestamp)
	}
	if targetTime.Before(a.Timestamp) || targetTime.After(b.Timestamp) {
		return models.Fix{}, fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfRange, targetTime, a.Timestamp, b.Timestamp)
	}
	if targetTime.Equal(a.Timestamp) {
		return a, nil
	}
	if targetTime.Equal(b.Timestamp) {
		return b, nil
	}

	frac := float64(targetTime.Sub(a.Timestamp)) / float64(b.Timestamp.Sub(a.Timestamp))
	out := a
	out.Loc.Lat = a.Loc.Lat + frac*(b.Loc.Lat-a.Loc.Lat)
	out.Loc.Lon = a.Loc.Lon + frac*(b.Loc.Lon-a.Loc.Lon)
	out.SpeedMps = a.SpeedMps + frac*(b.SpeedMps-a.SpeedMps)
	out.Heading = geo.Bearing(a.Loc, b.Loc)
	out.Timestamp = targetTime
	return out, nil
}

// EstimateFromMotion dead-reckons forward from a single fix using its
// speed and heading along a great circle. Used when no second fix is
// available and the stored state is stale.
func EstimateFromMotion(fix models.Fix, elapsed time.Duration) models.Fix {
	if elapsed <= 0 || fix.SpeedMps <= 0 {
		return fix
	}
	dist := fix.SpeedMps * elapsed.Seconds()
	out := fix
	out.Loc = geo.Destination(fix.Loc, fix.Heading, dist)
	out.Timestamp = fix.Timestamp.Add(elapsed)
	return out
}

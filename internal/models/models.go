package models

import "time"

type Coord struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// EntityStatus describes what the entity was doing at fix time.
type EntityStatus string

const (
	StatusMoving  EntityStatus = "moving"
	StatusIdle    EntityStatus = "idle"
	StatusStopped EntityStatus = "stopped"
)

// Fix is a single timestamped position report for one tracked entity.
type Fix struct {
	EntityID  string       `json:"entity_id" validate:"required"`
	Loc       Coord        `json:"loc"`
	SpeedMps  float64      `json:"speed_mps" validate:"gte=0"`
	Heading   float64      `json:"heading" validate:"gte=0,lt=360"`
	Status    EntityStatus `json:"status" validate:"omitempty,oneof=moving idle stopped"`
	Timestamp time.Time    `json:"timestamp" validate:"required"`
}

// EntityState is the authoritative live record for one entity.
// Prev holds the fix that Current replaced, for interpolation.
type EntityState struct {
	Current Fix    `json:"current"`
	Prev    *Fix   `json:"prev,omitempty"`
	Seq     uint64 `json:"seq"`
}

// RoadSegment is static reference data from the map-data provider.
type RoadSegment struct {
	ID    string `json:"id"`
	Start Coord  `json:"start"`
	End   Coord  `json:"end"`
}

type ZoneKind string

const (
	ZoneCircle  ZoneKind = "circle"
	ZonePolygon ZoneKind = "polygon"
)

// Zone is a named geofence. Circle zones use Center+RadiusMeters,
// polygon zones use Vertices.
type Zone struct {
	ID           string   `json:"id" yaml:"id" validate:"required"`
	Name         string   `json:"name" yaml:"name" validate:"required"`
	Kind         ZoneKind `json:"kind" yaml:"kind" validate:"required,oneof=circle polygon"`
	Center       Coord    `json:"center" yaml:"center"`
	RadiusMeters float64  `json:"radius_meters" yaml:"radius_meters" validate:"gte=0"`
	Vertices     []Coord  `json:"vertices,omitempty" yaml:"vertices"`
}

type TransitionType string

const (
	TransitionEnter TransitionType = "ENTER"
	TransitionExit  TransitionType = "EXIT"
)

// TransitionEvent records an entity crossing a zone boundary.
type TransitionEvent struct {
	ID        string         `json:"id"`
	EntityID  string         `json:"entity_id"`
	ZoneID    string         `json:"zone_id"`
	Type      TransitionType `json:"type"`
	Loc       Coord          `json:"loc"`
	Timestamp time.Time      `json:"timestamp"`
}

type TravelMode string

const (
	ModeDriving TravelMode = "driving"
	ModeWalking TravelMode = "walking"
	ModeCycling TravelMode = "cycling"
)

type MatrixRequest struct {
	Origins      []Coord    `json:"origins" validate:"min=1,max=100,dive"`
	Destinations []Coord    `json:"destinations" validate:"min=1,max=100,dive"`
	Mode         TravelMode `json:"mode" validate:"omitempty,oneof=driving walking cycling"`
}

// MatrixCell is one origin→destination element of a matrix result.
type MatrixCell struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type MatrixResult struct {
	Cells         [][]MatrixCell `json:"cells"`
	Provider      string         `json:"provider"`
	CacheHit      bool           `json:"cache_hit"`
	CacheKey      string         `json:"cache_key"`
	TotalDistance float64        `json:"total_distance_meters"`
	TotalDuration float64        `json:"total_duration_seconds"`
	ExecutionMs   int64          `json:"execution_time_ms"`
}

type RouteRequest struct {
	Start     Coord      `json:"start"`
	Waypoints []Coord    `json:"waypoints" validate:"max=25,dive"`
	Mode      TravelMode `json:"mode" validate:"omitempty,oneof=driving walking cycling"`
}

// RoutePlan is the optimizer output. Sequence holds indices into the
// request waypoint list in visiting order; the start point is excluded
// but its outgoing edge counts toward TotalDistance.
type RoutePlan struct {
	Sequence      []int   `json:"sequence"`
	TotalDistance float64 `json:"total_distance_meters"`
	TotalDuration float64 `json:"total_duration_seconds"`
	Iterations    int     `json:"iterations"`
}

// Package matrix computes origin×destination travel matrices with a
// cached, gracefully degrading pipeline: cache → external provider →
// haversine estimate. A caller always receives a usable answer; only
// malformed input is an error.
package matrix

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/fleet-tracking/internal/cache"
	"github.com/example/fleet-tracking/internal/geo"
	"github.com/example/fleet-tracking/internal/models"
	"github.com/example/fleet-tracking/internal/observability"
)

// ProviderHaversine tags results computed by the straight-line
// fallback so callers can distinguish estimate quality.
const ProviderHaversine = "haversine"

// ErrEmptyInput is the only error Calculate can return.
var ErrEmptyInput = errors.New("matrix requires at least one origin and one destination")

// Provider is the external routing collaborator.
type Provider interface {
	Name() string
	Matrix(ctx context.Context, origins, destinations []models.Coord, mode models.TravelMode) ([][]models.MatrixCell, error)
}

// fallback average speeds in m/s, mirroring common mode assumptions
// (driving 60 km/h, walking 5 km/h, cycling 15 km/h)
var fallbackSpeedMps = map[models.TravelMode]float64{
	models.ModeDriving: 16.6667,
	models.ModeWalking: 1.3889,
	models.ModeCycling: 4.1667,
}

const defaultFallbackSpeedMps = 8.3333

type Service struct {
	KV       cache.KV  // optional; nil disables caching
	Provider Provider  // optional; nil forces the haversine fallback
	Breaker  *Breaker  // guards Provider
	TTL      time.Duration
	Logger   *slog.Logger
}

func NewService(kv cache.KV, provider Provider, logger *slog.Logger) *Service {
	return &Service{
		KV:       kv,
		Provider: provider,
		Breaker:  NewBreaker(5, 30*time.Second),
		TTL:      time.Hour,
		Logger:   logger.With("component", "matrix"),
	}
}

// CacheKey derives a deterministic key from the mode and the inputs
// with coordinates rounded to 5 decimal places (~1.1 m), so
// semantically identical queries collapse to one entry regardless of
// float noise.
func CacheKey(req models.MatrixRequest) string {
	var b strings.Builder
	b.WriteString(string(req.Mode))
	b.WriteByte('|')
	for _, c := range req.Origins {
		fmt.Fprintf(&b, "%.5f,%.5f;", c.Lat, c.Lon)
	}
	b.WriteByte('|')
	for _, c := range req.Destinations {
		fmt.Fprintf(&b, "%.5f,%.5f;", c.Lat, c.Lon)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return "matrix:" + hex.EncodeToString(sum[:])
}

// Calculate runs the cache → provider → fallback pipeline. Provider
// and cache failures are absorbed internally; the result is tagged
// with the provider that produced it and whether the cache served it.
func (s *Service) Calculate(ctx context.Context, req models.MatrixRequest) (models.MatrixResult, error) {
	start := time.Now()
	observability.MatrixRequestsTotal.Inc()

	if len(req.Origins) == 0 || len(req.Destinations) == 0 {
		return models.MatrixResult{}, ErrEmptyInput
	}
	if req.Mode == "" {
		req.Mode = models.ModeDriving
	}

	key := CacheKey(req)
	if cached, ok := s.cacheGet(ctx, key); ok {
		cached.CacheHit = true
		cached.CacheKey = key
		cached.ExecutionMs = time.Since(start).Milliseconds()
		observability.MatrixCacheHitsTotal.Inc()
		return cached, nil
	}

	cells, providerName := s.compute(ctx, req)

	result := models.MatrixResult{
		Cells:    cells,
		Provider: providerName,
		CacheKey: key,
	}
	for i := range cells {
		for j := range cells[i] {
			result.TotalDistance += cells[i][j].DistanceMeters
			result.TotalDuration += cells[i][j].DurationSeconds
		}
	}
	result.ExecutionMs = time.Since(start).Milliseconds()

	s.cacheSet(ctx, key, result)
	observability.MatrixLatency.Observe(time.Since(start).Seconds())
	return result, nil
}

func (s *Service) compute(ctx context.Context, req models.MatrixRequest) ([][]models.MatrixCell, string) {
	if s.Provider != nil && s.Breaker.Allow() {
		cells, err := s.Provider.Matrix(ctx, req.Origins, req.Destinations, req.Mode)
		if err == nil {
			s.Breaker.Success()
			return cells, s.Provider.Name()
		}
		s.Breaker.Failure()
		s.Logger.Warn("routing provider failed, using haversine fallback", "provider", s.Provider.Name(), "error", err)
	}
	observability.MatrixFallbacksTotal.Inc()
	return haversineCells(req), ProviderHaversine
}

// haversineCells fills every cell with the great-circle distance and a
// duration derived from the per-mode average speed.
func haversineCells(req models.MatrixRequest) [][]models.MatrixCell {
	speed, ok := fallbackSpeedMps[req.Mode]
	if !ok {
		speed = defaultFallbackSpeedMps
	}
	cells := make([][]models.MatrixCell, len(req.Origins))
	for i, o := range req.Origins {
		cells[i] = make([]models.MatrixCell, len(req.Destinations))
		for j, d := range req.Destinations {
			dist := geo.Haversine(o, d)
			cells[i][j] = models.MatrixCell{
				DistanceMeters:  dist,
				DurationSeconds: math.Ceil(dist / speed),
			}
		}
	}
	return cells
}

func (s *Service) cacheGet(ctx context.Context, key string) (models.MatrixResult, bool) {
	if s.KV == nil {
		return models.MatrixResult{}, false
	}
	b, err := s.KV.Get(ctx, key)
	if err != nil {
		s.Logger.Warn("matrix cache unavailable, computing directly", "error", err)
		return models.MatrixResult{}, false
	}
	if b == nil {
		return models.MatrixResult{}, false
	}
	var res models.MatrixResult
	if err := json.Unmarshal(b, &res); err != nil {
		s.Logger.Warn("matrix cache entry corrupt", "key", key, "error", err)
		return models.MatrixResult{}, false
	}
	return res, true
}

func (s *Service) cacheSet(ctx context.Context, key string, res models.MatrixResult) {
	if s.KV == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := s.KV.SetWithTTL(ctx, key, b, ttl); err != nil {
		s.Logger.Warn("matrix cache store failed", "key", key, "error", err)
	}
}

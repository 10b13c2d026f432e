package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/fleet-tracking/internal/config"
	"github.com/example/fleet-tracking/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.ServerConfig{
		EstimateStaleAfter: 15 * time.Second,
		BreakerTrips:       5,
		BreakerCooldown:    30 * time.Second,
		MatrixCacheTTL:     time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(cfg, logger)
	t.Cleanup(s.Close)
	return s
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func validFix(ts time.Time) models.Fix {
	return models.Fix{
		EntityID:  "V1",
		Loc:       models.Coord{Lat: 19.4326, Lon: -99.1332},
		SpeedMps:  8,
		Heading:   45,
		Status:    models.StatusMoving,
		Timestamp: ts,
	}
}

func TestIngestFixAccepted(t *testing.T) {
	s := newTestServer(t)
	w := postJSON(t, s, "/api/v1/fleet/fixes", validFix(time.Now()))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIngestStaleFixRejected(t *testing.T) {
	s := newTestServer(t)
	ts := time.Now()
	if w := postJSON(t, s, "/api/v1/fleet/fixes", validFix(ts)); w.Code != http.StatusAccepted {
		t.Fatalf("first fix: expected 202, got %d", w.Code)
	}
	w := postJSON(t, s, "/api/v1/fleet/fixes", validFix(ts))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate timestamp, got %d", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["reason"] != "stale_fix" {
		t.Fatalf("expected stale_fix reason, got %+v", resp)
	}
}

func TestIngestMalformedCoordinatesRejected(t *testing.T) {
	s := newTestServer(t)
	fix := validFix(time.Now())
	fix.Loc.Lat = 91
	w := postJSON(t, s, "/api/v1/fleet/fixes", fix)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	// invalid input must never reach internal state
	if _, ok := s.Fleet.Get("V1"); ok {
		t.Fatal("rejected fix leaked into the store")
	}
}

func TestActiveFleet(t *testing.T) {
	s := newTestServer(t)
	postJSON(t, s, "/api/v1/fleet/fixes", validFix(time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fleet/active?max_age_seconds=60", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Fatalf("expected 1 active entity, got %d", resp.Count)
	}
}

func TestGetEntityNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fleet/ghost", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetEntityWithEstimate(t *testing.T) {
	s := newTestServer(t)
	fix := validFix(time.Now().Add(-time.Minute)) // older than staleness threshold
	postJSON(t, s, "/api/v1/fleet/fixes", fix)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fleet/V1?estimate=true", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Estimated bool        `json:"estimated"`
		Estimate  *models.Fix `json:"estimate"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Estimated || resp.Estimate == nil {
		t.Fatalf("expected dead-reckoned estimate, got %s", w.Body.String())
	}
	if resp.Estimate.Loc == fix.Loc {
		t.Fatal("estimate did not advance the position")
	}
}

func TestMatrixEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := postJSON(t, s, "/api/v1/matrix", models.MatrixRequest{
		Origins:      []models.Coord{{Lat: 0, Lon: 0}},
		Destinations: []models.Coord{{Lat: 0, Lon: 1}},
		Mode:         models.ModeDriving,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res models.MatrixResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Provider != "haversine" {
		t.Fatalf("expected haversine provider with no OSRM configured, got %q", res.Provider)
	}
}

func TestMatrixEmptyRejected(t *testing.T) {
	s := newTestServer(t)
	w := postJSON(t, s, "/api/v1/matrix", models.MatrixRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOptimizeRouteEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := postJSON(t, s, "/api/v1/routes/optimize", models.RouteRequest{
		Start: models.Coord{Lat: 0, Lon: 0},
		Waypoints: []models.Coord{
			{Lat: 0, Lon: 0.2},
			{Lat: 0, Lon: 0.1},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var plan models.RoutePlan
	_ = json.Unmarshal(w.Body.Bytes(), &plan)
	if len(plan.Sequence) != 2 {
		t.Fatalf("expected 2 waypoints in sequence, got %v", plan.Sequence)
	}
	if plan.Sequence[0] != 1 {
		t.Fatalf("expected nearest waypoint first, got %v", plan.Sequence)
	}
}

func TestEvaluateGeofencesUnknownEntity(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fleet/ghost/geofences", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestConcurrentIngestManyEntities(t *testing.T) {
	s := newTestServer(t)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			fix := validFix(time.Now())
			fix.EntityID = fmt.Sprintf("V%d", i)
			postJSON(t, s, "/api/v1/fleet/fixes", fix)
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	if got := s.Fleet.Count(); got != 8 {
		t.Fatalf("expected 8 entities, got %d", got)
	}
}

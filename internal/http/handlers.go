// Package httpapi is the ingestion/query gateway: it validates
// incoming fixes and spatial queries and dispatches them to the
// tracking core. Expected error conditions come back as structured
// rejections, never as uncaught faults.
package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/fleet-tracking/internal/cache"
	"github.com/example/fleet-tracking/internal/config"
	"github.com/example/fleet-tracking/internal/dispatch"
	"github.com/example/fleet-tracking/internal/fleet"
	"github.com/example/fleet-tracking/internal/geofence"
	"github.com/example/fleet-tracking/internal/ingest"
	"github.com/example/fleet-tracking/internal/matrix"
	"github.com/example/fleet-tracking/internal/models"
	"github.com/example/fleet-tracking/internal/motion"
	"github.com/example/fleet-tracking/internal/observability"
	"github.com/example/fleet-tracking/internal/route"
	"github.com/example/fleet-tracking/internal/storage"
)

type Server struct {
	Fleet     *fleet.Store
	Geofence  *geofence.Engine
	Matrix    *matrix.Service
	Optimizer *route.Optimizer
	Kafka     *ingest.KafkaProducer
	WSReg     *dispatch.WSRegistry

	cfg      config.ServerConfig
	validate *validator.Validate
	logger   *slog.Logger
	mux      *mux.Router
	archiver *storage.Archiver
}

// NewServer wires the tracking core from config. Redis backs the
// matrix cache and membership store when configured; everything
// degrades to in-memory equivalents otherwise.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	var kv cache.KV
	if cfg.RedisAddr != "" {
		if rc, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, 0, logger); err == nil {
			kv = rc
		} else {
			logger.Warn("redis unavailable, using in-memory cache", "error", err)
		}
	}
	if kv == nil {
		kv = cache.NewMemory()
	}

	store := fleet.NewStore()

	var zones []models.Zone
	if cfg.ZoneFile != "" {
		if zs, err := geofence.LoadZones(cfg.ZoneFile); err == nil {
			zones = zs
		} else {
			logger.Warn("zone file not loaded, geofencing disabled", "path", cfg.ZoneFile, "error", err)
		}
	}
	engine := geofence.NewEngine(zones, geofence.NewKVMembershipStore(kv), logger)
	store.Subscribe(engine)

	wsreg := dispatch.NewWSRegistry(logger)
	engine.AddSink(wsreg)
	if cfg.WebhookURL != "" {
		engine.AddSink(dispatch.NewWebhookDispatcher(cfg.WebhookURL))
	}

	var hist storage.HistoryStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			hist = ps
		} else {
			logger.Warn("postgres unavailable, archiving to memory", "error", err)
		}
	}
	if hist == nil {
		hist = storage.NewMemoryStore()
	}
	archiver := storage.NewArchiver(hist, 1024, logger)
	store.Subscribe(archiver)

	var provider matrix.Provider
	if cfg.OSRMEndpoint != "" {
		provider = matrix.NewOSRMClient(cfg.OSRMEndpoint, cfg.ProviderTimeout)
	}
	matrixSvc := matrix.NewService(kv, provider, logger)
	matrixSvc.Breaker = matrix.NewBreaker(cfg.BreakerTrips, cfg.BreakerCooldown)
	matrixSvc.TTL = cfg.MatrixCacheTTL

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	s := &Server{
		Fleet:     store,
		Geofence:  engine,
		Matrix:    matrixSvc,
		Optimizer: route.NewOptimizer(matrixSvc),
		Kafka:     kp,
		WSReg:     wsreg,
		cfg:       cfg,
		validate:  validator.New(),
		logger:    logger,
		mux:       mux.NewRouter(),
		archiver:  archiver,
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/fleet/fixes", s.handleIngestFix).Methods("POST")
	s.mux.HandleFunc("/api/v1/fleet/active", s.handleActiveFleet).Methods("GET")
	s.mux.HandleFunc("/api/v1/fleet/{entity_id}", s.handleGetEntity).Methods("GET")
	s.mux.HandleFunc("/api/v1/fleet/{entity_id}/geofences", s.handleEvaluateGeofences).Methods("GET")
	s.mux.HandleFunc("/api/v1/matrix", s.handleMatrix).Methods("POST")
	s.mux.HandleFunc("/api/v1/routes/optimize", s.handleOptimizeRoute).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/fleet", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Close releases background resources (archiver drain, kafka writer).
func (s *Server) Close() {
	if s.Kafka != nil {
		_ = s.Kafka.Close()
	}
	s.archiver.Close()
}

func (s *Server) handleIngestFix(w http.ResponseWriter, r *http.Request) {
	var fix models.Fix
	if err := json.NewDecoder(r.Body).Decode(&fix); err != nil {
		writeRejection(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}
	if fix.Status == "" {
		fix.Status = models.StatusMoving
	}
	if err := s.validate.Struct(fix); err != nil {
		observability.FixesRejectedTotal.WithLabelValues("validation").Inc()
		writeRejection(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	if err := s.Fleet.Ingest(fix); err != nil {
		if errors.Is(err, fleet.ErrStaleFix) {
			observability.FixesRejectedTotal.WithLabelValues("stale").Inc()
			s.logger.Debug("stale fix dropped", "entity_id", fix.EntityID, "timestamp", fix.Timestamp)
			writeRejection(w, http.StatusConflict, "stale_fix", "timestamp not newer than stored state")
			return
		}
		writeRejection(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	observability.FixesIngestedTotal.Inc()
	observability.EntitiesTracked.Set(float64(s.Fleet.Count()))

	// downstream pipeline is best-effort
	if s.Kafka != nil {
		if err := s.Kafka.PublishFix(fix); err != nil {
			s.logger.Warn("kafka publish failed", "entity_id", fix.EntityID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (s *Server) handleActiveFleet(w http.ResponseWriter, r *http.Request) {
	maxAge := 300 * time.Second
	if v := r.URL.Query().Get("max_age_seconds"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			writeRejection(w, http.StatusBadRequest, "validation", "max_age_seconds must be a positive integer")
			return
		}
		maxAge = time.Duration(secs) * time.Second
	}
	states := s.Fleet.ListActive(maxAge)
	writeJSON(w, http.StatusOK, map[string]any{"entities": states, "count": len(states)})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["entity_id"]
	st, ok := s.Fleet.Get(id)
	if !ok {
		writeRejection(w, http.StatusNotFound, "not_found", "unknown entity id")
		return
	}

	resp := map[string]any{"state": st, "estimated": false}
	if r.URL.Query().Get("estimate") == "true" {
		age := time.Since(st.Current.Timestamp)
		if age > s.cfg.EstimateStaleAfter {
			est := motion.EstimateFromMotion(st.Current, age)
			resp["estimate"] = est
			resp["estimated"] = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluateGeofences(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["entity_id"]
	st, ok := s.Fleet.Get(id)
	if !ok {
		writeRejection(w, http.StatusNotFound, "not_found", "unknown entity id")
		return
	}
	events, err := s.Geofence.Evaluate(r.Context(), st.Current)
	if err != nil {
		observability.GeofenceEvalErrors.Inc()
		writeRejection(w, http.StatusServiceUnavailable, "retryable", "membership store unavailable")
		return
	}
	if events == nil {
		events = []models.TransitionEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	var req models.MatrixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRejection(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeRejection(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	res, err := s.Matrix.Calculate(r.Context(), req)
	if err != nil {
		writeRejection(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRejection(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeRejection(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	plan, err := s.Optimizer.Optimize(r.Context(), req)
	if err != nil {
		writeRejection(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		writeRejection(w, http.StatusBadRequest, "upgrade_failed", err.Error())
		return
	}
	s.WSReg.Add(newID(), conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRejection(w http.ResponseWriter, status int, reason, detail string) {
	writeJSON(w, status, map[string]string{"status": "rejected", "reason": reason, "detail": detail})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }

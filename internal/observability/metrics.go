package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FixesIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "fixes_ingested_total", Help: "Total accepted position fixes"})
	FixesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "fixes_rejected_total", Help: "Total rejected position fixes"},
		[]string{"reason"},
	)
	EntitiesTracked = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "fleet_tracking", Name: "entities_tracked", Help: "Number of entities in the fleet store"})

	GeofenceEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "geofence_events_total", Help: "Zone transition events emitted"},
		[]string{"type"},
	)
	GeofenceEvalErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "geofence_eval_errors_total", Help: "Failed geofence evaluations"})

	MatrixRequestsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "matrix_requests_total", Help: "Distance matrix requests"})
	MatrixCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "matrix_cache_hits_total", Help: "Distance matrix cache hits"})
	MatrixFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "matrix_fallbacks_total", Help: "Matrix computations served by the haversine fallback"})
	MatrixLatency        = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "fleet_tracking", Name: "matrix_latency_seconds", Help: "Matrix computation latency", Buckets: prometheus.DefBuckets})

	RoutesOptimizedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "routes_optimized_total", Help: "Route optimization requests served"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleet_tracking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

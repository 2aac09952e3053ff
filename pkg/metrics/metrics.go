package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// SearchIterations counts Monte Carlo iterations, valid or not
	SearchIterations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "search_iterations_total", Help: "Monte Carlo search iterations."},
	)
	// SearchValidRoutes counts iterations that produced a complete route
	SearchValidRoutes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "search_valid_routes_total", Help: "Complete seven continent routes found."},
	)
	// SearchAbandoned counts iterations abandoned for lack of a reachable airport
	SearchAbandoned = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "search_abandoned_iterations_total", Help: "Search iterations abandoned."},
	)
	// SearchBestDuration is the best total duration seen by the latest run
	SearchBestDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "search_best_duration_hours", Help: "Best route duration in hours."},
	)
	// OptimizerEvaluations counts candidate routes scored by the optimizer
	OptimizerEvaluations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimizer_evaluations_total", Help: "Candidate routes evaluated by the local optimizer."},
	)
	// DistanceCacheMisses counts distances computed because the cache lacked them
	DistanceCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "distance_cache_misses_total", Help: "Distance cache misses."},
	)
	// Runs counts finished planning runs by status
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planning_runs_total", Help: "Planning runs by final status."},
		[]string{"status"},
	)
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers collectors to Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			SearchIterations,
			SearchValidRoutes,
			SearchAbandoned,
			SearchBestDuration,
			OptimizerEvaluations,
			DistanceCacheMisses,
			Runs,
			HTTPRequests,
			HTTPDuration,
		)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dvrp/internal/metrics"
)

// Handler returns the full HTTP surface wrapped in rate limiting,
// metrics and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Dispatch and optimization
	mux.HandleFunc("/v1/simulate", s.SimulateHandler)
	mux.HandleFunc("/v1/optimize", s.OptimizeHandler)
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)
	mux.HandleFunc("/v1/optimizer/metrics", s.OptimizerMetricsHandler)

	// Runs
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /snapshots and /ws

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)

	// Ops
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/info", s.DebugJSON)

	return instrument(s.Logger, rateLimit(s.limiter, mux))
}

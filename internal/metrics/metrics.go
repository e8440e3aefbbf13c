package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
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

	// Simulations counts dispatch runs by halt reason
	Simulations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dvrp_simulations_total", Help: "Dispatch simulation runs by halt reason."},
		[]string{"halt"},
	)
	// SimulationDuration tracks wall time of one dispatch run
	SimulationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dvrp_simulation_duration_seconds", Help: "Dispatch simulation wall time.", Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}},
	)
	OptimizerRounds = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dvrp_optimizer_rounds_total", Help: "Optimizer rounds executed."},
	)
	// OptimizerMoves counts move outcomes: improved for local moves, accepted or rejected for disturbances
	OptimizerMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dvrp_optimizer_moves_total", Help: "Optimizer move outcomes."},
		[]string{"move", "outcome"},
	)
	OptimizerBestCost = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dvrp_optimizer_best_cost", Help: "Best objective of the last finished optimizer run."},
	)
	// RunsInFlight is the number of async optimizer runs not yet finished
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dvrp_runs_in_flight", Help: "Asynchronous optimizer runs in progress."},
	)
)

// ObserveSimulation records one finished dispatch run.
func ObserveSimulation(halt string, d time.Duration) {
	Simulations.WithLabelValues(halt).Inc()
	SimulationDuration.Observe(d.Seconds())
}

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Simulations)
		Registry.MustRegister(SimulationDuration)
		Registry.MustRegister(OptimizerRounds)
		Registry.MustRegister(OptimizerMoves)
		Registry.MustRegister(OptimizerBestCost)
		Registry.MustRegister(RunsInFlight)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

package opt

import "sync"

type key struct {
	Scenario string
	RunID    string
}

var (
	mu    sync.Mutex
	store = map[key]Metrics{}
)

// RecordMetrics keeps the latest metrics of a run in memory.
func RecordMetrics(scenario, runID string, m Metrics) {
	mu.Lock()
	store[key{Scenario: scenario, RunID: runID}] = m
	mu.Unlock()
}

// GetMetrics returns run id -> metrics for a scenario.
func GetMetrics(scenario string) map[string]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]Metrics{}
	for k, v := range store {
		if k.Scenario == scenario {
			out[k.RunID] = v
		}
	}
	return out
}

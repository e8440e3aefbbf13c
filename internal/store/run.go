package store

import (
	"encoding/json"
	"time"
)

const (
	KindSimulate = "simulate"
	KindOptimize = "optimize"

	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run is one simulate or optimize request and its outcome. Result and
// Metrics hold the JSON documents produced by the engine and optimizer.
type Run struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Scenario    string          `json:"scenario"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
	InitialCost float64         `json:"initialCost"`
	BestCost    float64         `json:"bestCost"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Metrics     json.RawMessage `json:"metrics,omitempty"`
}

type Snapshot struct {
	Round      int     `json:"round"`
	BestCost   float64 `json:"bestCost"`
	AnchorCost float64 `json:"anchorCost"`
}

package api

import (
	"errors"
	"fmt"
	"math"

	"dvrp/internal/sim"
)

const (
	maxTimeBudgetMs  = 10 * 60 * 1000
	maxParamValue    = 1e6
	maxParamIterates = 1_000_000
)

// errNonFiniteCost marks a run whose objective overflowed float64.
var errNonFiniteCost = errors.New("objective is not finite")

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func validateOptimizeRequest(req *OptimizeRequest) error {
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.TimeBudgetMs > maxTimeBudgetMs {
		return fmt.Errorf("timeBudgetMs must be <= %d", maxTimeBudgetMs)
	}
	if req.Acceptance < 0 || math.IsNaN(req.Acceptance) {
		return fmt.Errorf("acceptance must be >= 0")
	}
	if req.MaxRounds < 0 {
		return fmt.Errorf("maxRounds must be >= 0")
	}
	return validateParams(req.Params)
}

func validateParams(p *sim.Params) error {
	if p == nil {
		return nil
	}
	fields := map[string]float64{
		"serviceTime":        p.ServiceTime,
		"handlingTime":       p.HandlingTime,
		"latenessWeight":     p.LatenessWeight,
		"horizon":            p.Horizon,
		"retryStep":          p.RetryStep,
		"undeliveredPenalty": p.UndeliveredPenalty,
	}
	for _, k := range []string{"serviceTime", "handlingTime", "latenessWeight", "horizon", "retryStep", "undeliveredPenalty"} {
		if v := fields[k]; v < 0 || !finite(v) || v > maxParamValue {
			return fmt.Errorf("params.%s must be between 0 and %g", k, maxParamValue)
		}
	}
	if p.MaxIterations < 0 || p.MaxIterations > maxParamIterates {
		return fmt.Errorf("params.maxIterations must be between 0 and %d", maxParamIterates)
	}
	return nil
}

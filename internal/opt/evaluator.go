package opt

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"dvrp/internal/metrics"
	"dvrp/internal/model"
	"dvrp/internal/sim"
)

// Evaluator scores order sets against a fixed reference configuration.
// Plants, fleet template, oracle and params are read-only; every call works
// on its own clones and its own engine, so calls may run concurrently.
type Evaluator struct {
	Plants map[int]model.Plant
	Fleet  model.Fleet
	Oracle sim.Oracle
	Params sim.Params
}

// Evaluation is the cost of one order set and the run that produced it.
type Evaluation struct {
	Cost   float64
	Result *sim.Result
}

func NewEvaluator(sc *model.Scenario, oracle sim.Oracle, p sim.Params) *Evaluator {
	return &Evaluator{Plants: sc.Plants, Fleet: sc.Fleet, Oracle: oracle, Params: p}
}

func (e *Evaluator) Evaluate(orders *model.OrderSet) (Evaluation, error) {
	start := time.Now()
	eng, err := sim.New(e.Plants, orders.Clone(), e.Fleet.Clone(), e.Oracle, e.Params)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}
	res, err := eng.Run()
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}
	metrics.ObserveSimulation(string(res.Halt), time.Since(start))
	return Evaluation{Cost: res.Objective, Result: res}, nil
}

// EvaluateAll scores candidates concurrently. Results keep the input order.
func (e *Evaluator) EvaluateAll(ctx context.Context, sets []*model.OrderSet) ([]Evaluation, error) {
	out := make([]Evaluation, len(sets))
	g, _ := errgroup.WithContext(ctx)
	for i, s := range sets {
		i, s := i, s
		g.Go(func() error {
			ev, err := e.Evaluate(s)
			if err != nil {
				return err
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

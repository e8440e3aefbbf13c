package opt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"dvrp/internal/metrics"
	"dvrp/internal/model"
)

const (
	DefaultTimeBudget    = 5 * time.Second
	DefaultAcceptance    = 6.0
	DefaultSnapshotEvery = 50
)

// StopReason says why Optimize returned.
type StopReason string

const (
	StopBudget       StopReason = "time_budget"
	StopLocalOptimum StopReason = "disturbance_rejected"
	StopRoundLimit   StopReason = "round_limit"
	StopCanceled     StopReason = "canceled"
)

type Metrics struct {
	Seed                 int64          `json:"seed"`
	Rounds               int            `json:"rounds"`
	Evaluations          int            `json:"evaluations"`
	Improvements         int            `json:"improvements"`
	AcceptedDisturbances int            `json:"acceptedDisturbances"`
	RejectedDisturbances int            `json:"rejectedDisturbances"`
	MoveSelects          [numMoves]int  `json:"moveSelects"`
	MoveWins             [numMoves]int  `json:"moveWins"`
	InitialCost          float64        `json:"initialCost"`
	BestCost             float64        `json:"bestCost"`
	AnchorCost           float64        `json:"anchorCost"`
	Stop                 StopReason     `json:"stop"`
	Elapsed              time.Duration  `json:"elapsedNs"`
	Snapshots            []CostSnapshot `json:"snapshots,omitempty"`
}

// CostSnapshot samples the search every few rounds.
type CostSnapshot struct {
	Round      int     `json:"round"`
	BestCost   float64 `json:"bestCost"`
	AnchorCost float64 `json:"anchorCost"`
}

// Progress is handed to the observer after every round.
type Progress struct {
	Round      int           `json:"round"`
	BestCost   float64       `json:"bestCost"`
	AnchorCost float64       `json:"anchorCost"`
	Improved   bool          `json:"improved"`
	Move       string        `json:"move,omitempty"`
	Accepted   bool          `json:"accepted"`
	Elapsed    time.Duration `json:"elapsedNs"`
}

// Outcome is the best order set found and how the search went.
type Outcome struct {
	Initial    Evaluation
	Best       Evaluation
	BestOrders *model.OrderSet
	Metrics    Metrics
}

// Optimizer searches order-set variants by first-improvement local moves
// from an anchor, falling back to a disturbance of the incumbent that is
// kept as the new anchor when its cost stays under Acceptance times the
// anchor cost.
type Optimizer struct {
	Eval          *Evaluator
	TimeBudget    time.Duration
	Acceptance    float64
	Seed          int64
	MaxRounds     int
	Parallel      bool
	SnapshotEvery int
	Observer      func(Progress)
	Logger        *slog.Logger
}

// withDefaults returns a copy with zero fields resolved, so a reused
// Optimizer draws a fresh clock seed on every call.
func (o *Optimizer) withDefaults() *Optimizer {
	c := *o
	if c.TimeBudget <= 0 {
		c.TimeBudget = DefaultTimeBudget
	}
	if c.Acceptance <= 0 {
		c.Acceptance = DefaultAcceptance
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = DefaultSnapshotEvery
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return &c
}

// Optimize runs until the time budget is spent, ctx is done, the round
// limit is reached, or a disturbance is rejected. Budget and ctx are only
// checked between rounds. Neither the input set nor o is modified.
func (o *Optimizer) Optimize(ctx context.Context, orders *model.OrderSet) (*Outcome, error) {
	if o.Eval == nil {
		return nil, fmt.Errorf("optimize: nil evaluator")
	}
	return o.withDefaults().search(ctx, orders)
}

func (o *Optimizer) search(ctx context.Context, orders *model.OrderSet) (*Outcome, error) {
	rng := rand.New(rand.NewSource(o.Seed))
	start := time.Now()
	deadline := start.Add(o.TimeBudget)

	initial, err := o.Eval.Evaluate(orders)
	if err != nil {
		return nil, fmt.Errorf("optimize: initial: %w", err)
	}
	m := Metrics{Seed: o.Seed, Evaluations: 1, InitialCost: initial.Cost}
	best, bestOrders := initial, orders.Clone()
	anchor, anchorOrders := initial, bestOrders
	o.Logger.Info("optimize start", "orders", orders.Len(), "initialCost", initial.Cost, "budget", o.TimeBudget.String(), "seed", o.Seed)

	for {
		if m.Stop = o.stopReason(ctx, deadline, m.Rounds); m.Stop != "" {
			break
		}
		m.Rounds++
		metrics.OptimizerRounds.Inc()
		p := Progress{Round: m.Rounds}

		cand, move, err := o.localPhase(ctx, anchorOrders, best.Cost, rng, &m)
		if err != nil {
			return nil, fmt.Errorf("optimize: round %d: %w", m.Rounds, err)
		}
		if cand != nil {
			best, bestOrders = cand.eval, cand.orders
			m.Improvements++
			m.MoveWins[move]++
			p.Improved, p.Move = true, move.String()
			metrics.OptimizerMoves.WithLabelValues(move.String(), "improved").Inc()
		} else {
			disturbed := Disturb(bestOrders, rng)
			ev, err := o.Eval.Evaluate(disturbed)
			m.Evaluations++
			if err != nil {
				return nil, fmt.Errorf("optimize: round %d: disturb: %w", m.Rounds, err)
			}
			if ev.Cost < anchor.Cost*o.Acceptance {
				anchor, anchorOrders = ev, disturbed
				m.AcceptedDisturbances++
				p.Accepted = true
				metrics.OptimizerMoves.WithLabelValues("disturb", "accepted").Inc()
			} else {
				m.RejectedDisturbances++
				metrics.OptimizerMoves.WithLabelValues("disturb", "rejected").Inc()
				m.Stop = StopLocalOptimum
			}
		}

		p.BestCost, p.AnchorCost, p.Elapsed = best.Cost, anchor.Cost, time.Since(start)
		if m.Rounds%o.SnapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, CostSnapshot{Round: m.Rounds, BestCost: best.Cost, AnchorCost: anchor.Cost})
		}
		if o.Observer != nil {
			o.Observer(p)
		}
		if m.Stop != "" {
			break
		}
	}

	m.BestCost, m.AnchorCost, m.Elapsed = best.Cost, anchor.Cost, time.Since(start)
	metrics.OptimizerBestCost.Set(best.Cost)
	o.Logger.Info("optimize done", "rounds", m.Rounds, "evaluations", m.Evaluations, "bestCost", best.Cost, "stop", string(m.Stop))
	return &Outcome{Initial: initial, Best: best, BestOrders: bestOrders, Metrics: m}, nil
}

func (o *Optimizer) stopReason(ctx context.Context, deadline time.Time, rounds int) StopReason {
	switch {
	case ctx.Err() != nil:
		return StopCanceled
	case o.MaxRounds > 0 && rounds >= o.MaxRounds:
		return StopRoundLimit
	case !time.Now().Before(deadline):
		return StopBudget
	}
	return ""
}

type candidate struct {
	orders *model.OrderSet
	eval   Evaluation
}

// localPhase tries each move on the anchor in fixed order and returns the
// first candidate that beats bestCost, or nil.
func (o *Optimizer) localPhase(ctx context.Context, anchor *model.OrderSet, bestCost float64, rng Rand, m *Metrics) (*candidate, Move, error) {
	if o.Parallel {
		sets := make([]*model.OrderSet, 0, numMoves)
		for _, mv := range Moves {
			sets = append(sets, mv.Apply(anchor, rng))
			m.MoveSelects[mv]++
		}
		evals, err := o.Eval.EvaluateAll(ctx, sets)
		m.Evaluations += len(sets)
		if err != nil {
			return nil, 0, err
		}
		for i, ev := range evals {
			if ev.Cost < bestCost {
				return &candidate{orders: sets[i], eval: ev}, Moves[i], nil
			}
		}
		return nil, 0, nil
	}
	for _, mv := range Moves {
		set := mv.Apply(anchor, rng)
		m.MoveSelects[mv]++
		ev, err := o.Eval.Evaluate(set)
		m.Evaluations++
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", mv, err)
		}
		if ev.Cost < bestCost {
			return &candidate{orders: set, eval: ev}, mv, nil
		}
	}
	return nil, 0, nil
}

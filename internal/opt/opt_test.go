package opt

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvrp/internal/model"
	"dvrp/internal/scenario"
	"dvrp/internal/sim"
)

func reference(t *testing.T) (*model.Scenario, *Evaluator) {
	t.Helper()
	rec := scenario.ReferenceRecord()
	sc, err := rec.Build()
	require.NoError(t, err)
	return sc, NewEvaluator(sc, scenario.Oracle(sc, 0), *rec.Params)
}

func deliveries(s *model.OrderSet) map[int]int {
	out := map[int]int{}
	s.Each(func(o *model.Order) { out[o.ID] = o.Delivery })
	return out
}

func TestPairExchangeSwapsDeliveries(t *testing.T) {
	sc, _ := reference(t)
	before := deliveries(sc.Orders)
	out := PairExchange(sc.Orders, rand.New(rand.NewSource(3)))

	assert.Equal(t, before, deliveries(sc.Orders), "input untouched")
	after := deliveries(out)
	changed := 0
	for id, d := range after {
		if before[id] != d {
			changed++
		}
	}
	// two distinct orders swapped; equal deliveries would make it a no-op
	assert.LessOrEqual(t, changed, 2)
	assert.ElementsMatch(t, values(before), values(after))
}

func values(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func TestBlockMovesOnlyReorder(t *testing.T) {
	sc, ev := reference(t)
	base, err := ev.Evaluate(sc.Orders)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for _, mv := range []Move{MoveBlockExchange, MoveBlockRelocate, MoveMultiRelocate} {
		out := mv.Apply(sc.Orders, rng)
		assert.Equal(t, deliveries(sc.Orders), deliveries(out), mv.String())
		assert.ElementsMatch(t, sc.Orders.Keys(), out.Keys(), mv.String())

		got, err := ev.Evaluate(out)
		require.NoError(t, err)
		assert.Equal(t, base.Result, got.Result, mv.String())
	}
}

// countingRand fails the test if any draw happens.
type countingRand struct{ t *testing.T }

func (c countingRand) Intn(int) int {
	c.t.Fatal("unexpected random draw")
	return 0
}

func TestMovesWithOneOrderAreNoOps(t *testing.T) {
	o, err := model.NewOrder(1, 1, 2, 1, 0, 10)
	require.NoError(t, err)
	set := model.NewOrderSet(o)
	r := countingRand{t: t}
	for _, mv := range Moves {
		out := mv.Apply(set, r)
		assert.Equal(t, []int{1}, out.Keys())
		got, _ := out.Get(1)
		assert.Equal(t, 2, got.Delivery)
		assert.NotSame(t, o, got)
	}
	assert.Equal(t, 1, Disturb(set, r).Len())
}

func TestMoveString(t *testing.T) {
	assert.Equal(t, "pair_exchange", MovePairExchange.String())
	assert.Equal(t, "multi_relocate", MoveMultiRelocate.String())
	assert.Equal(t, "unknown", Move(9).String())
}

func TestEvaluateDoesNotTouchTemplates(t *testing.T) {
	sc, ev := reference(t)
	first, err := ev.Evaluate(sc.Orders)
	require.NoError(t, err)
	second, err := ev.Evaluate(sc.Orders)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.InDelta(t, 41.0, first.Cost, 1e-9)
	sc.Orders.Each(func(o *model.Order) { assert.False(t, o.Picked) })
	for _, v := range sc.Fleet {
		assert.Empty(t, v.Route)
	}
}

func TestEvaluateAllKeepsOrder(t *testing.T) {
	sc, ev := reference(t)
	zero := sc.Orders.Clone()
	zero.Each(func(o *model.Order) { o.Arrival = 1000 })

	evals, err := ev.EvaluateAll(context.Background(), []*model.OrderSet{sc.Orders, zero})
	require.NoError(t, err)
	require.Len(t, evals, 2)
	assert.InDelta(t, 41.0, evals[0].Cost, 1e-9)
	// nothing arrives within the horizon
	assert.Zero(t, evals[1].Result.DeliveredCount())
}

func TestOptimizeIsMonotone(t *testing.T) {
	sc, ev := reference(t)
	var rounds []Progress
	o := &Optimizer{Eval: ev, TimeBudget: time.Minute, Seed: 42, MaxRounds: 40, SnapshotEvery: 5, Observer: func(p Progress) { rounds = append(rounds, p) }}
	out, err := o.Optimize(context.Background(), sc.Orders)
	require.NoError(t, err)

	assert.LessOrEqual(t, out.Best.Cost, out.Initial.Cost)
	assert.InDelta(t, 41.0, out.Initial.Cost, 1e-9)
	assert.Equal(t, out.Best.Cost, out.Metrics.BestCost)
	require.Len(t, rounds, out.Metrics.Rounds)
	prev := out.Initial.Cost
	for _, p := range rounds {
		assert.LessOrEqual(t, p.BestCost, prev)
		prev = p.BestCost
	}
	for i := 1; i < len(out.Metrics.Snapshots); i++ {
		assert.LessOrEqual(t, out.Metrics.Snapshots[i].BestCost, out.Metrics.Snapshots[i-1].BestCost)
	}
	assert.Contains(t, []StopReason{StopRoundLimit, StopLocalOptimum}, out.Metrics.Stop)

	// the best order set reproduces its cost
	again, err := ev.Evaluate(out.BestOrders)
	require.NoError(t, err)
	assert.Equal(t, out.Best.Cost, again.Cost)
}

func TestOptimizeIsDeterministicForSeed(t *testing.T) {
	sc, ev := reference(t)
	run := func(parallel bool) *Outcome {
		o := &Optimizer{Eval: ev, TimeBudget: time.Minute, Seed: 7, MaxRounds: 25, Parallel: parallel}
		out, err := o.Optimize(context.Background(), sc.Orders)
		require.NoError(t, err)
		return out
	}
	a, b := run(false), run(false)
	assert.Equal(t, a.Best.Cost, b.Best.Cost)
	assert.Equal(t, a.Metrics.Rounds, b.Metrics.Rounds)
	assert.Equal(t, a.Metrics.MoveWins, b.Metrics.MoveWins)
	assert.Equal(t, deliveries(a.BestOrders), deliveries(b.BestOrders))

	p, q := run(true), run(true)
	assert.Equal(t, p.Best.Cost, q.Best.Cost)
	assert.Equal(t, p.Metrics.Evaluations, q.Metrics.Evaluations)
}

func TestOptimizeSingleOrderStopsAtFirstDisturbance(t *testing.T) {
	_, ev := reference(t)
	o, err := model.NewOrder(1, 1, 2, 1, 0, 300)
	require.NoError(t, err)

	opt := &Optimizer{Eval: ev, TimeBudget: time.Minute, Acceptance: 1, Seed: 1}
	out, err := opt.Optimize(context.Background(), model.NewOrderSet(o))
	require.NoError(t, err)

	assert.Equal(t, StopLocalOptimum, out.Metrics.Stop)
	assert.Equal(t, 1, out.Metrics.Rounds)
	assert.Equal(t, 6, out.Metrics.Evaluations)
	assert.Equal(t, 1, out.Metrics.RejectedDisturbances)
	assert.Equal(t, out.Initial.Cost, out.Best.Cost)
}

func TestOptimizeHonoursBudgetAndContext(t *testing.T) {
	sc, ev := reference(t)
	o := &Optimizer{Eval: ev, TimeBudget: time.Nanosecond, Seed: 1}
	out, err := o.Optimize(context.Background(), sc.Orders)
	require.NoError(t, err)
	assert.Equal(t, StopBudget, out.Metrics.Stop)
	assert.Zero(t, out.Metrics.Rounds)
	assert.Equal(t, out.Initial.Cost, out.Best.Cost)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o = &Optimizer{Eval: ev, TimeBudget: time.Minute, Seed: 1}
	out, err = o.Optimize(ctx, sc.Orders)
	require.NoError(t, err)
	assert.Equal(t, StopCanceled, out.Metrics.Stop)
}

func TestOptimizeLeavesConfigUntouched(t *testing.T) {
	sc, ev := reference(t)
	o := &Optimizer{Eval: ev, MaxRounds: 1}

	first, err := o.Optimize(context.Background(), sc.Orders)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := o.Optimize(context.Background(), sc.Orders)
	require.NoError(t, err)

	assert.Equal(t, &Optimizer{Eval: ev, MaxRounds: 1}, o)
	assert.NotZero(t, first.Metrics.Seed)
	assert.NotZero(t, second.Metrics.Seed)
	assert.NotEqual(t, first.Metrics.Seed, second.Metrics.Seed, "each call draws its own clock seed")
}

func TestOptimizePropagatesEvaluationErrors(t *testing.T) {
	_, ev := reference(t)
	o, err := model.NewOrder(1, 1, 99, 1, 0, 10)
	require.NoError(t, err)

	opt := &Optimizer{Eval: ev, TimeBudget: time.Second, Seed: 1}
	_, err = opt.Optimize(context.Background(), model.NewOrderSet(o))
	assert.ErrorIs(t, err, sim.ErrUnknownPlant)

	_, err = (&Optimizer{}).Optimize(context.Background(), model.NewOrderSet(o))
	assert.Error(t, err)
}

func TestMetricsStore(t *testing.T) {
	RecordMetrics("reference", "run-a", Metrics{Rounds: 3})
	RecordMetrics("reference", "run-b", Metrics{Rounds: 5})
	RecordMetrics("other", "run-c", Metrics{Rounds: 1})

	got := GetMetrics("reference")
	assert.Len(t, got, 2)
	assert.Equal(t, 5, got["run-b"].Rounds)
	assert.Empty(t, GetMetrics("missing"))
}

package sim

import "sort"

// Distancer is the slice of the oracle the objective needs.
type Distancer interface {
	Distance(a, b int) float64
}

type Weights struct {
	LatenessWeight     float64
	UndeliveredPenalty float64
}

// Breakdown is the scored outcome of one run.
type Breakdown struct {
	TotalLateness float64 `json:"totalLateness"`
	AvgDistance   float64 `json:"avgDistance"`
	Objective     float64 `json:"objective"`
	Undelivered   int     `json:"undelivered"`
}

// Evaluate scores final order and vehicle states. An undelivered order costs
// its due time times the undelivered penalty; a delivered one costs its
// lateness. Route distance starts at each vehicle's start plant.
func Evaluate(orders map[int]OrderOutcome, vehicles map[int]VehicleOutcome, d Distancer, w Weights) Breakdown {
	var b Breakdown
	for _, id := range sortedKeys(orders) {
		o := orders[id]
		if !o.Delivered || o.DeliveredAt == nil {
			b.TotalLateness += o.Due * w.UndeliveredPenalty
			b.Undelivered++
			continue
		}
		if late := *o.DeliveredAt - o.Due; late > 0 {
			b.TotalLateness += late
		}
	}
	total := 0.0
	for _, id := range sortedKeys(vehicles) {
		v := vehicles[id]
		prev := v.Start
		for _, s := range v.Route {
			total += d.Distance(prev, s.Plant)
			prev = s.Plant
		}
	}
	n := len(vehicles)
	if n < 1 {
		n = 1
	}
	b.AvgDistance = total / float64(n)
	b.Objective = w.LatenessWeight*b.TotalLateness + b.AvgDistance
	return b
}

// sortedKeys keeps float summation order stable across runs.
func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

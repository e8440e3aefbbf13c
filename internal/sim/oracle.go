package sim

import "dvrp/internal/model"

// DefaultSpeedDivisor converts distance to minutes when no travel time is known.
const DefaultSpeedDivisor = 30.0

// Oracle answers symmetric distance and travel-time queries between plants.
type Oracle interface {
	Distance(a, b int) float64
	TravelTime(a, b int) float64
}

// Table is an immutable Oracle backed by lookup tables. Either direction of a
// pair satisfies a lookup. Safe for concurrent readers.
type Table struct {
	distances    map[model.Pair]float64
	travel       map[model.Pair]float64
	speedDivisor float64
}

func NewTable(distances, travel map[model.Pair]float64, speedDivisor float64) *Table {
	if speedDivisor <= 0 {
		speedDivisor = DefaultSpeedDivisor
	}
	t := &Table{
		distances:    make(map[model.Pair]float64, len(distances)),
		travel:       make(map[model.Pair]float64, len(travel)),
		speedDivisor: speedDivisor,
	}
	for k, v := range distances {
		t.distances[k] = v
	}
	for k, v := range travel {
		t.travel[k] = v
	}
	return t
}

// Distance returns 0 for unknown pairs.
func (t *Table) Distance(a, b int) float64 {
	d, _ := lookup(t.distances, a, b)
	return d
}

// TravelTime falls back to distance over the speed divisor.
func (t *Table) TravelTime(a, b int) float64 {
	if v, ok := lookup(t.travel, a, b); ok {
		return v
	}
	return t.Distance(a, b) / t.speedDivisor
}

func lookup(m map[model.Pair]float64, a, b int) (float64, bool) {
	if v, ok := m[model.Pair{From: a, To: b}]; ok {
		return v, true
	}
	v, ok := m[model.Pair{From: b, To: a}]
	return v, ok
}

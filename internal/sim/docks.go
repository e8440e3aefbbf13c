package sim

import "dvrp/internal/model"

type reservation struct {
	vehicle int
	release float64
}

// DockTable tracks which vehicles hold a dock at each plant and until when.
// A reservation is active while its release time is later than the query time.
type DockTable struct {
	docks map[int]int
	occ   map[int][]reservation
}

func NewDockTable(plants map[int]model.Plant) *DockTable {
	d := &DockTable{docks: make(map[int]int, len(plants)), occ: make(map[int][]reservation, len(plants))}
	for id, p := range plants {
		d.docks[id] = p.Docks
	}
	return d
}

// Free prunes expired reservations at plant and returns the number of idle docks.
// Unknown plants have none.
func (d *DockTable) Free(plant int, at float64) int {
	occ := d.occ[plant][:0]
	for _, r := range d.occ[plant] {
		if r.release > at {
			occ = append(occ, r)
		}
	}
	d.occ[plant] = occ
	if n := d.docks[plant] - len(occ); n > 0 {
		return n
	}
	return 0
}

func (d *DockTable) Occupy(plant, vehicle int, until float64) {
	d.occ[plant] = append(d.occ[plant], reservation{vehicle: vehicle, release: until})
}

// Active counts reservations still held at time at without pruning.
func (d *DockTable) Active(plant int, at float64) int {
	n := 0
	for _, r := range d.occ[plant] {
		if r.release > at {
			n++
		}
	}
	return n
}

func (d *DockTable) Reset() {
	for id := range d.occ {
		delete(d.occ, id)
	}
}

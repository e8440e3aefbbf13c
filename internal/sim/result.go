package sim

import "dvrp/internal/model"

// HaltReason says why the dispatch loop stopped.
type HaltReason string

const (
	HaltAllDelivered   HaltReason = "all_delivered"
	HaltDeadlock       HaltReason = "deadlock"
	HaltIterationLimit HaltReason = "iteration_limit"
)

type OrderOutcome struct {
	Picked      bool     `json:"picked"`
	Delivered   bool     `json:"delivered"`
	DeliveredAt *float64 `json:"deliveredAt"`
	Due         float64  `json:"due"`
}

type VehicleOutcome struct {
	Start         int          `json:"start"`
	Route         []model.Stop `json:"route"`
	FinalTime     float64      `json:"finalTime"`
	FinalLocation int          `json:"finalLocation"`
}

// Result is the snapshot returned by a run. It shares nothing with the
// engine's entities.
type Result struct {
	Breakdown
	Orders     map[int]OrderOutcome   `json:"orders"`
	Vehicles   map[int]VehicleOutcome `json:"vehicles"`
	Iterations int                    `json:"iterations"`
	Halt       HaltReason             `json:"halt"`
}

func snapshot(orders *model.OrderSet, fleet model.Fleet) (map[int]OrderOutcome, map[int]VehicleOutcome) {
	oo := make(map[int]OrderOutcome, orders.Len())
	orders.Each(func(o *model.Order) {
		out := OrderOutcome{Picked: o.Picked, Delivered: o.Delivered, Due: o.Due}
		if o.DeliveredAt != nil {
			at := *o.DeliveredAt
			out.DeliveredAt = &at
		}
		oo[o.ID] = out
	})
	vo := make(map[int]VehicleOutcome, len(fleet))
	for _, v := range fleet {
		vo[v.ID] = VehicleOutcome{
			Start:         v.Start,
			Route:         append([]model.Stop(nil), v.Route...),
			FinalTime:     v.Clock,
			FinalLocation: v.Location,
		}
	}
	return oo, vo
}

// Clone deep copies the result.
func (r *Result) Clone() *Result {
	c := *r
	c.Orders = make(map[int]OrderOutcome, len(r.Orders))
	for id, o := range r.Orders {
		if o.DeliveredAt != nil {
			at := *o.DeliveredAt
			o.DeliveredAt = &at
		}
		c.Orders[id] = o
	}
	c.Vehicles = make(map[int]VehicleOutcome, len(r.Vehicles))
	for id, v := range r.Vehicles {
		v.Route = append([]model.Stop(nil), v.Route...)
		c.Vehicles[id] = v
	}
	return &c
}

// DeliveredCount returns how many orders were delivered.
func (r *Result) DeliveredCount() int {
	n := 0
	for _, o := range r.Orders {
		if o.Delivered {
			n++
		}
	}
	return n
}

package sim

import (
	"errors"
	"fmt"
	"sort"

	"dvrp/internal/model"
)

var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrUnknownPlant    = errors.New("unknown plant")
)

// Engine runs greedy dispatch over one set of orders and vehicles. It owns
// the dock table and mutates the entities it was built with; callers that
// need isolation hand it clones.
type Engine struct {
	plants map[int]model.Plant
	orders *model.OrderSet
	fleet  model.Fleet
	oracle Oracle
	params Params
	docks  *DockTable
}

// New validates that every order and vehicle references a known plant.
func New(plants map[int]model.Plant, orders *model.OrderSet, fleet model.Fleet, oracle Oracle, p Params) (*Engine, error) {
	if orders == nil || oracle == nil {
		return nil, fmt.Errorf("sim: nil orders or oracle: %w", ErrInvalidScenario)
	}
	for _, id := range orders.SortedIDs() {
		o, _ := orders.Get(id)
		if _, ok := plants[o.Pickup]; !ok {
			return nil, fmt.Errorf("sim: order %d pickup %d: %w", o.ID, o.Pickup, ErrUnknownPlant)
		}
		if _, ok := plants[o.Delivery]; !ok {
			return nil, fmt.Errorf("sim: order %d delivery %d: %w", o.ID, o.Delivery, ErrUnknownPlant)
		}
		if o.Qty < 0 {
			return nil, fmt.Errorf("sim: order %d qty %d: %w", o.ID, o.Qty, ErrInvalidScenario)
		}
	}
	for _, v := range fleet {
		if v == nil {
			return nil, fmt.Errorf("sim: nil vehicle: %w", ErrInvalidScenario)
		}
		if _, ok := plants[v.Start]; !ok {
			return nil, fmt.Errorf("sim: vehicle %d start %d: %w", v.ID, v.Start, ErrUnknownPlant)
		}
	}
	return &Engine{
		plants: plants,
		orders: orders,
		fleet:  fleet,
		oracle: oracle,
		params: p.withDefaults(),
		docks:  NewDockTable(plants),
	}, nil
}

func (e *Engine) Params() Params { return e.params }

// Docks exposes the dock table of the last run.
func (e *Engine) Docks() *DockTable { return e.docks }

// Run resets all mutable state and dispatches until every order that arrives
// within the horizon is delivered, a pass makes no progress, or the
// iteration bound is hit.
func (e *Engine) Run() (*Result, error) {
	e.reset()
	res := &Result{Halt: HaltIterationLimit}
	ids := e.orders.SortedIDs()
	for res.Iterations < e.params.MaxIterations {
		res.Iterations++
		if !e.pending(ids) {
			res.Halt = HaltAllDelivered
			break
		}
		progressed := false
		for _, v := range e.byClock() {
			if v.Clock > e.params.Horizon {
				continue
			}
			moved, err := e.step(v, ids)
			if err != nil {
				return nil, fmt.Errorf("sim: iteration %d vehicle %d: %w", res.Iterations, v.ID, err)
			}
			progressed = progressed || moved
		}
		if !progressed {
			res.Halt = HaltDeadlock
			break
		}
	}
	res.Orders, res.Vehicles = snapshot(e.orders, e.fleet)
	res.Breakdown = Evaluate(res.Orders, res.Vehicles, e.oracle, e.params.weights())
	return res, nil
}

func (e *Engine) reset() {
	e.orders.Each(func(o *model.Order) { o.Reset() })
	for _, v := range e.fleet {
		v.Reset()
	}
	e.docks.Reset()
}

func (e *Engine) pending(ids []int) bool {
	for _, id := range ids {
		o, _ := e.orders.Get(id)
		if !o.Delivered && o.Arrival <= e.params.Horizon {
			return true
		}
	}
	return false
}

func (e *Engine) byClock() model.Fleet {
	vs := append(model.Fleet(nil), e.fleet...)
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Clock != vs[j].Clock {
			return vs[i].Clock < vs[j].Clock
		}
		return vs[i].ID < vs[j].ID
	})
	return vs
}

// step applies the first matching rule: deliver, pick up, reposition, idle.
// Only idling does not count as progress.
func (e *Engine) step(v *model.Vehicle, ids []int) (bool, error) {
	if top, ok := v.Top(); ok && v.Location == top.Delivery {
		return true, e.deliver(v, top)
	}
	if o := e.choosePickup(v, ids); o != nil {
		return true, e.pickup(v, o)
	}
	if top, ok := v.Top(); ok {
		v.Clock += e.oracle.TravelTime(v.Location, top.Delivery)
		v.Location = top.Delivery
		return true, nil
	}
	v.Clock += e.params.RetryStep
	return false, nil
}

func (e *Engine) service(qty int) float64 {
	return e.params.ServiceTime + e.params.HandlingTime*float64(qty)
}

func (e *Engine) deliver(v *model.Vehicle, top model.Cargo) error {
	if e.docks.Free(v.Location, v.Clock) <= 0 {
		v.Clock += e.params.RetryStep
		return nil
	}
	o, ok := e.orders.Get(top.OrderID)
	if !ok {
		return fmt.Errorf("deliver order %d: %w", top.OrderID, ErrInvalidScenario)
	}
	finish := v.Clock + e.service(top.Qty)
	if _, err := v.Pop(); err != nil {
		return err
	}
	if err := o.MarkDelivered(finish); err != nil {
		return err
	}
	v.Clock = finish
	v.Log(v.Location, finish)
	e.docks.Occupy(v.Location, v.ID, finish)
	return nil
}

// choosePickup returns the feasible unpicked order with the earliest due
// time, then the earliest projected arrival, then the lowest id.
func (e *Engine) choosePickup(v *model.Vehicle, ids []int) *model.Order {
	var best *model.Order
	bestArr := 0.0
	for _, id := range ids {
		o, _ := e.orders.Get(id)
		if o.Picked || o.Delivered || !v.Fits(o) {
			continue
		}
		arr := e.arrivalAt(v, o)
		if best == nil || o.Due < best.Due || (o.Due == best.Due && arr < bestArr) {
			best, bestArr = o, arr
		}
	}
	return best
}

func (e *Engine) arrivalAt(v *model.Vehicle, o *model.Order) float64 {
	earliest := v.Clock
	if o.Arrival > earliest {
		earliest = o.Arrival
	}
	return earliest + e.oracle.TravelTime(v.Location, o.Pickup)
}

// pickup drives to the pickup plant first; a busy dock leaves the vehicle
// waiting there for the next pass.
func (e *Engine) pickup(v *model.Vehicle, o *model.Order) error {
	v.Clock = e.arrivalAt(v, o)
	v.Location = o.Pickup
	if e.docks.Free(v.Location, v.Clock) <= 0 {
		v.Clock += e.params.RetryStep
		return nil
	}
	finish := v.Clock + e.service(o.Qty)
	if err := v.Push(o); err != nil {
		return err
	}
	o.MarkPicked()
	v.Clock = finish
	v.Log(v.Location, finish)
	e.docks.Occupy(v.Location, v.ID, finish)
	return nil
}

package model

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrOverCapacity = errors.New("over capacity")
	ErrStackOrder   = errors.New("stack order violated")
	ErrEmptyStack   = errors.New("empty stack")
)

// Cargo is one entry on a vehicle's LIFO stack.
type Cargo struct {
	OrderID  int     `json:"orderId"`
	Delivery int     `json:"delivery"`
	Qty      int     `json:"qty"`
	Due      float64 `json:"due"`
}

// Vehicle carries orders on a LIFO stack. Load always equals the summed
// quantity of the stack.
type Vehicle struct {
	ID       int     `json:"id"`
	Capacity int     `json:"capacity"`
	Start    int     `json:"start"`
	Location int     `json:"location"`
	Clock    float64 `json:"clock"`
	Load     int     `json:"load"`
	Stack    []Cargo `json:"stack"`
	Route    []Stop  `json:"route"`
}

func NewVehicle(id, capacity, start int) *Vehicle {
	return &Vehicle{ID: id, Capacity: capacity, Start: start, Location: start}
}

// Fits reports whether o can be pushed without breaking capacity or the
// non-decreasing due order of the stack.
func (v *Vehicle) Fits(o *Order) bool {
	if v.Load+o.Qty > v.Capacity {
		return false
	}
	if top, ok := v.Top(); ok && o.Due < top.Due {
		return false
	}
	return true
}

// Push loads o on top of the stack.
func (v *Vehicle) Push(o *Order) error {
	if v.Load+o.Qty > v.Capacity {
		return fmt.Errorf("vehicle %d: push order %d (load %d + %d > %d): %w", v.ID, o.ID, v.Load, o.Qty, v.Capacity, ErrOverCapacity)
	}
	if top, ok := v.Top(); ok && o.Due < top.Due {
		return fmt.Errorf("vehicle %d: push order %d due %.2f under %.2f: %w", v.ID, o.ID, o.Due, top.Due, ErrStackOrder)
	}
	v.Stack = append(v.Stack, Cargo{OrderID: o.ID, Delivery: o.Delivery, Qty: o.Qty, Due: o.Due})
	v.Load += o.Qty
	return nil
}

// Pop removes and returns the top of the stack.
func (v *Vehicle) Pop() (Cargo, error) {
	n := len(v.Stack)
	if n == 0 {
		return Cargo{}, fmt.Errorf("vehicle %d: %w", v.ID, ErrEmptyStack)
	}
	c := v.Stack[n-1]
	v.Stack = v.Stack[:n-1]
	v.Load -= c.Qty
	return c, nil
}

func (v *Vehicle) Top() (Cargo, bool) {
	if len(v.Stack) == 0 {
		return Cargo{}, false
	}
	return v.Stack[len(v.Stack)-1], true
}

func (v *Vehicle) Log(plant int, at float64) {
	v.Route = append(v.Route, Stop{Plant: plant, At: at})
}

// Reset puts the vehicle back at its start with an empty stack and route.
func (v *Vehicle) Reset() {
	v.Location = v.Start
	v.Clock = 0
	v.Load = 0
	v.Stack = nil
	v.Route = nil
}

func (v *Vehicle) Clone() *Vehicle {
	c := *v
	c.Stack = append([]Cargo(nil), v.Stack...)
	c.Route = append([]Stop(nil), v.Route...)
	return &c
}

// Fleet is the set of vehicles taking part in a run.
type Fleet []*Vehicle

func (f Fleet) Clone() Fleet {
	out := make(Fleet, len(f))
	for i, v := range f {
		out[i] = v.Clone()
	}
	return out
}

func (f Fleet) Get(id int) (*Vehicle, bool) {
	for _, v := range f {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// IDs returns vehicle ids in ascending order.
func (f Fleet) IDs() []int {
	ids := make([]int, 0, len(f))
	for _, v := range f {
		ids = append(ids, v.ID)
	}
	sort.Ints(ids)
	return ids
}

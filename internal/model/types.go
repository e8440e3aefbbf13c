package model

import (
	"errors"
	"fmt"
)

// Core domain types shared by the simulator and the optimizer.
// Time is minutes from scenario start, distance is in instance units.

var (
	ErrNotPicked        = errors.New("order not picked")
	ErrAlreadyDelivered = errors.New("order already delivered")
	ErrInvalidOrder     = errors.New("invalid order")
)

// Plant is a location with a fixed number of loading docks.
type Plant struct {
	ID    int    `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Docks int    `json:"docks" yaml:"docks"`
}

// Pair keys distance and travel-time tables.
type Pair struct {
	From int
	To   int
}

// Order is a pickup/delivery request. Picked, Delivered and DeliveredAt are
// mutated by a simulation run and restored by Reset.
type Order struct {
	ID          int      `json:"id"`
	Pickup      int      `json:"pickup"`
	Delivery    int      `json:"delivery"`
	Qty         int      `json:"qty"`
	Arrival     float64  `json:"arrival"`
	Due         float64  `json:"due"`
	Picked      bool     `json:"picked"`
	Delivered   bool     `json:"delivered"`
	DeliveredAt *float64 `json:"deliveredAt,omitempty"`
}

// NewOrder builds an order in its initial state.
func NewOrder(id, pickup, delivery, qty int, arrival, due float64) (*Order, error) {
	if pickup == delivery {
		return nil, fmt.Errorf("order %d: pickup and delivery both %d: %w", id, pickup, ErrInvalidOrder)
	}
	if qty < 0 {
		return nil, fmt.Errorf("order %d: negative qty %d: %w", id, qty, ErrInvalidOrder)
	}
	return &Order{ID: id, Pickup: pickup, Delivery: delivery, Qty: qty, Arrival: arrival, Due: due}, nil
}

func (o *Order) MarkPicked() { o.Picked = true }

// MarkDelivered records the completion time. It fails if the order was
// never picked or was already delivered.
func (o *Order) MarkDelivered(at float64) error {
	if !o.Picked {
		return fmt.Errorf("order %d: %w", o.ID, ErrNotPicked)
	}
	if o.Delivered {
		return fmt.Errorf("order %d: %w", o.ID, ErrAlreadyDelivered)
	}
	o.Delivered = true
	o.DeliveredAt = &at
	return nil
}

func (o *Order) Reset() {
	o.Picked = false
	o.Delivered = false
	o.DeliveredAt = nil
}

func (o *Order) Clone() *Order {
	c := *o
	if o.DeliveredAt != nil {
		at := *o.DeliveredAt
		c.DeliveredAt = &at
	}
	return &c
}

// Stop is one route log entry: the plant serviced and the completion time.
type Stop struct {
	Plant int     `json:"plant"`
	At    float64 `json:"at"`
}

// Scenario is the shape every instance source produces.
type Scenario struct {
	Name        string
	Plants      map[int]Plant
	Orders      *OrderSet
	Fleet       Fleet
	Distances   map[Pair]float64
	TravelTimes map[Pair]float64
}

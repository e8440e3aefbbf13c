package scenario

import "dvrp/internal/sim"

// ReferenceRecord is a depot plus three plants, four orders and two vehicles.
// Travel times assume 40 distance units per hour.
func ReferenceRecord() Record {
	p := ReferenceParams()
	return Record{
		Name: "reference",
		Plants: []PlantRecord{
			{ID: 0, Name: "Depot", Docks: 2},
			{ID: 1, Name: "P1", Docks: 2},
			{ID: 2, Name: "P2", Docks: 1},
			{ID: 3, Name: "P3", Docks: 1},
		},
		Orders: []OrderRecord{
			{ID: 1, Pickup: 1, Delivery: 2, Qty: 2, Arrival: 10, Due: 180},
			{ID: 2, Pickup: 1, Delivery: 3, Qty: 1, Arrival: 20, Due: 160},
			{ID: 3, Pickup: 2, Delivery: 3, Qty: 3, Arrival: 0, Due: 240},
			{ID: 4, Pickup: 3, Delivery: 1, Qty: 1, Arrival: 30, Due: 200},
		},
		Vehicles: []VehicleRecord{
			{ID: 1, Capacity: 5, Start: 0},
			{ID: 2, Capacity: 4, Start: 0},
		},
		Distances: []EdgeRecord{
			{From: 0, To: 1, Value: 10}, {From: 0, To: 2, Value: 20}, {From: 0, To: 3, Value: 25},
			{From: 1, To: 2, Value: 12}, {From: 1, To: 3, Value: 15}, {From: 2, To: 3, Value: 8},
		},
		SpeedKmh: 40,
		Params:   &p,
	}
}

// ReferenceParams are the dispatch parameters used with the reference
// scenario: an eight hour horizon.
func ReferenceParams() sim.Params {
	p := sim.DefaultParams()
	p.ServiceTime = 5
	p.HandlingTime = 2
	p.LatenessWeight = 50
	p.Horizon = 8 * 60
	return p
}

// Package scenario decodes problem instances into model.Scenario values.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dvrp/internal/model"
	"dvrp/internal/sim"
)

var ErrInvalid = errors.New("invalid scenario")

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

type PlantRecord struct {
	ID    int    `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Docks int    `yaml:"docks" json:"docks"`
}

type OrderRecord struct {
	ID       int     `yaml:"id" json:"id"`
	Pickup   int     `yaml:"pickup" json:"pickup"`
	Delivery int     `yaml:"delivery" json:"delivery"`
	Qty      int     `yaml:"qty" json:"qty"`
	Arrival  float64 `yaml:"arrival" json:"arrival"`
	Due      float64 `yaml:"due" json:"due"`
}

type VehicleRecord struct {
	ID       int `yaml:"id" json:"id"`
	Capacity int `yaml:"capacity" json:"capacity"`
	Start    int `yaml:"start" json:"start"`
}

// EdgeRecord is one unordered plant pair.
type EdgeRecord struct {
	From  int     `yaml:"from" json:"from"`
	To    int     `yaml:"to" json:"to"`
	Value float64 `yaml:"value" json:"value"`
}

// Record is the serialized form of an instance. When TravelTimes is empty and
// SpeedKmh is set, travel minutes are derived as distance / speed * 60.
type Record struct {
	Name        string          `yaml:"name" json:"name"`
	Plants      []PlantRecord   `yaml:"plants" json:"plants"`
	Orders      []OrderRecord   `yaml:"orders" json:"orders"`
	Vehicles    []VehicleRecord `yaml:"vehicles" json:"vehicles"`
	Distances   []EdgeRecord    `yaml:"distances" json:"distances"`
	TravelTimes []EdgeRecord    `yaml:"travel_times" json:"travelTimes"`
	SpeedKmh    float64         `yaml:"speed_kmh" json:"speedKmh"`
	Params      *sim.Params     `yaml:"params,omitempty" json:"params,omitempty"`
}

func Decode(r io.Reader, format Format) (Record, error) {
	var rec Record
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&rec); err != nil {
			return Record{}, fmt.Errorf("scenario: decode json: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
			return Record{}, fmt.Errorf("scenario: decode yaml: %w", err)
		}
	default:
		return Record{}, fmt.Errorf("scenario: unknown format %q", format)
	}
	return rec, nil
}

// LoadFile decodes a .json, .yaml or .yml file.
func LoadFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("scenario: %w", err)
	}
	defer func() { _ = f.Close() }()
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	return Decode(f, format)
}

// Build validates the record and produces a scenario with fresh entities.
func (r Record) Build() (*model.Scenario, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	sc := &model.Scenario{
		Name:        r.Name,
		Plants:      make(map[int]model.Plant, len(r.Plants)),
		Orders:      model.NewOrderSet(),
		Distances:   make(map[model.Pair]float64, len(r.Distances)),
		TravelTimes: make(map[model.Pair]float64, len(r.TravelTimes)),
	}
	for _, p := range r.Plants {
		sc.Plants[p.ID] = model.Plant{ID: p.ID, Name: p.Name, Docks: p.Docks}
	}
	for _, o := range r.Orders {
		ord, err := model.NewOrder(o.ID, o.Pickup, o.Delivery, o.Qty, o.Arrival, o.Due)
		if err != nil {
			return nil, fmt.Errorf("scenario: %w", err)
		}
		sc.Orders.Insert(ord)
	}
	for _, v := range r.Vehicles {
		sc.Fleet = append(sc.Fleet, model.NewVehicle(v.ID, v.Capacity, v.Start))
	}
	for _, e := range r.Distances {
		sc.Distances[model.Pair{From: e.From, To: e.To}] = e.Value
	}
	for _, e := range r.TravelTimes {
		sc.TravelTimes[model.Pair{From: e.From, To: e.To}] = e.Value
	}
	if len(r.TravelTimes) == 0 && r.SpeedKmh > 0 {
		for k, d := range sc.Distances {
			sc.TravelTimes[k] = d / r.SpeedKmh * 60
		}
	}
	return sc, nil
}

// Validate checks identities and references. It reports every problem found.
func (r Record) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("scenario: "+format+": %w", append(args, ErrInvalid)...))
	}
	plants := map[int]bool{}
	for _, p := range r.Plants {
		if plants[p.ID] {
			bad("duplicate plant %d", p.ID)
		}
		plants[p.ID] = true
		if p.Docks < 0 {
			bad("plant %d has %d docks", p.ID, p.Docks)
		}
	}
	orders := map[int]bool{}
	for _, o := range r.Orders {
		if orders[o.ID] {
			bad("duplicate order %d", o.ID)
		}
		orders[o.ID] = true
		if !plants[o.Pickup] || !plants[o.Delivery] {
			bad("order %d references unknown plant", o.ID)
		}
		if o.Pickup == o.Delivery {
			bad("order %d picks up and delivers at %d", o.ID, o.Pickup)
		}
		if o.Qty < 0 {
			bad("order %d qty %d", o.ID, o.Qty)
		}
		if !finite(o.Arrival) || !finite(o.Due) {
			bad("order %d has non-finite times", o.ID)
		}
	}
	vehicles := map[int]bool{}
	for _, v := range r.Vehicles {
		if vehicles[v.ID] {
			bad("duplicate vehicle %d", v.ID)
		}
		vehicles[v.ID] = true
		if !plants[v.Start] {
			bad("vehicle %d starts at unknown plant %d", v.ID, v.Start)
		}
		if v.Capacity < 0 {
			bad("vehicle %d capacity %d", v.ID, v.Capacity)
		}
	}
	for _, e := range append(append([]EdgeRecord(nil), r.Distances...), r.TravelTimes...) {
		if e.Value < 0 || !finite(e.Value) {
			bad("edge %d-%d value %v", e.From, e.To, e.Value)
		}
	}
	return errors.Join(errs...)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Oracle builds the travel oracle for a scenario.
func Oracle(sc *model.Scenario, speedDivisor float64) *sim.Table {
	return sim.NewTable(sc.Distances, sc.TravelTimes, speedDivisor)
}

package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvrp/internal/model"
	"dvrp/internal/sim"
)

const yamlInstance = `
name: tiny
speed_kmh: 30
plants:
  - {id: 0, name: Depot, docks: 1}
  - {id: 1, name: A, docks: 1}
  - {id: 2, name: B, docks: 1}
orders:
  - {id: 1, pickup: 1, delivery: 2, qty: 1, arrival: 0, due: 90}
vehicles:
  - {id: 1, capacity: 2, start: 0}
distances:
  - {from: 0, to: 1, value: 15}
  - {from: 1, to: 2, value: 30}
`

func TestDecodeYAMLDerivesTravelTimes(t *testing.T) {
	rec, err := Decode(strings.NewReader(yamlInstance), FormatYAML)
	require.NoError(t, err)
	sc, err := rec.Build()
	require.NoError(t, err)

	assert.Equal(t, "tiny", sc.Name)
	assert.Len(t, sc.Plants, 3)
	assert.Equal(t, 1, sc.Orders.Len())
	assert.Len(t, sc.Fleet, 1)
	assert.Equal(t, 30.0, sc.TravelTimes[model.Pair{From: 0, To: 1}])
	assert.Equal(t, 60.0, sc.TravelTimes[model.Pair{From: 1, To: 2}])
}

func TestDecodeJSON(t *testing.T) {
	body := `{"name":"j","plants":[{"id":1,"name":"A","docks":1},{"id":2,"name":"B","docks":2}],
	"orders":[{"id":7,"pickup":1,"delivery":2,"qty":3,"arrival":5,"due":50}],
	"vehicles":[{"id":1,"capacity":3,"start":1}],
	"distances":[{"from":1,"to":2,"value":9}],
	"travelTimes":[{"from":2,"to":1,"value":4}]}`
	rec, err := Decode(strings.NewReader(body), FormatJSON)
	require.NoError(t, err)
	sc, err := rec.Build()
	require.NoError(t, err)

	o, ok := sc.Orders.Get(7)
	require.True(t, ok)
	assert.Equal(t, 3, o.Qty)
	assert.Equal(t, 4.0, Oracle(sc, 0).TravelTime(1, 2))
	assert.Equal(t, 9.0, Oracle(sc, 0).Distance(2, 1))
}

func TestDecodeUnknownFormat(t *testing.T) {
	_, err := Decode(strings.NewReader("{}"), Format("toml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlInstance), 0o600))
	rec, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", rec.Name)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestValidateReportsProblems(t *testing.T) {
	rec := Record{
		Plants:   []PlantRecord{{ID: 1, Docks: 1}, {ID: 1, Docks: -1}},
		Orders:   []OrderRecord{{ID: 1, Pickup: 1, Delivery: 1}, {ID: 2, Pickup: 1, Delivery: 9, Qty: -2}},
		Vehicles: []VehicleRecord{{ID: 1, Start: 4}, {ID: 1, Start: 1, Capacity: -1}},
	}
	err := rec.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"duplicate plant 1", "docks", "picks up and delivers", "unknown plant", "qty -2", "duplicate vehicle 1", "capacity -1"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = rec.Build()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestReferenceScenarioDeliversEverything(t *testing.T) {
	rec := ReferenceRecord()
	sc, err := rec.Build()
	require.NoError(t, err)
	require.NotNil(t, rec.Params)

	eng, err := sim.New(sc.Plants, sc.Orders, sc.Fleet, Oracle(sc, 0), *rec.Params)
	require.NoError(t, err)
	res, err := eng.Run()
	require.NoError(t, err)

	assert.Equal(t, sim.HaltAllDelivered, res.Halt)
	assert.Zero(t, res.Undelivered)
	assert.Zero(t, res.TotalLateness)
	assert.InDelta(t, 41.0, res.Objective, 1e-9)
}

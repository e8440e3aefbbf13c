package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOrder(t *testing.T, id, pickup, delivery, qty int, arrival, due float64) *Order {
	t.Helper()
	o, err := NewOrder(id, pickup, delivery, qty, arrival, due)
	require.NoError(t, err)
	return o
}

func TestNewOrderRejectsSamePlant(t *testing.T) {
	_, err := NewOrder(1, 2, 2, 1, 0, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOrder))

	_, err = NewOrder(1, 1, 2, -1, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestOrderDeliveryLifecycle(t *testing.T) {
	o := mustOrder(t, 1, 1, 2, 1, 0, 10)

	assert.ErrorIs(t, o.MarkDelivered(5), ErrNotPicked)

	o.MarkPicked()
	require.NoError(t, o.MarkDelivered(7))
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, 7.0, *o.DeliveredAt)
	assert.ErrorIs(t, o.MarkDelivered(8), ErrAlreadyDelivered)

	c := o.Clone()
	*c.DeliveredAt = 99
	assert.Equal(t, 7.0, *o.DeliveredAt)

	o.Reset()
	assert.False(t, o.Picked)
	assert.False(t, o.Delivered)
	assert.Nil(t, o.DeliveredAt)
}

func TestVehicleLIFO(t *testing.T) {
	v := NewVehicle(1, 5, 0)
	a := mustOrder(t, 1, 1, 2, 2, 0, 100)
	b := mustOrder(t, 2, 1, 3, 2, 0, 150)
	late := mustOrder(t, 3, 1, 3, 1, 0, 120)
	big := mustOrder(t, 4, 1, 3, 2, 0, 200)

	require.NoError(t, v.Push(a))
	require.NoError(t, v.Push(b))
	assert.Equal(t, 4, v.Load)

	assert.False(t, v.Fits(late), "due earlier than top")
	assert.ErrorIs(t, v.Push(late), ErrStackOrder)
	assert.False(t, v.Fits(big), "over capacity")
	assert.ErrorIs(t, v.Push(big), ErrOverCapacity)

	top, err := v.Pop()
	require.NoError(t, err)
	assert.Equal(t, 2, top.OrderID)
	assert.Equal(t, 3, top.Delivery)
	top, err = v.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1, top.OrderID)
	assert.Equal(t, 0, v.Load)

	_, err = v.Pop()
	assert.ErrorIs(t, err, ErrEmptyStack)
}

func TestVehicleZeroCapacityFitsNothing(t *testing.T) {
	v := NewVehicle(1, 0, 0)
	assert.False(t, v.Fits(mustOrder(t, 1, 1, 2, 1, 0, 10)))
}

func TestVehicleResetAndClone(t *testing.T) {
	v := NewVehicle(7, 3, 4)
	require.NoError(t, v.Push(mustOrder(t, 1, 1, 2, 1, 0, 10)))
	v.Location = 1
	v.Clock = 12
	v.Log(1, 12)

	c := v.Clone()
	c.Stack[0].Qty = 3
	c.Route[0].At = 0
	assert.Equal(t, 1, v.Stack[0].Qty)
	assert.Equal(t, 12.0, v.Route[0].At)

	v.Reset()
	assert.Equal(t, 4, v.Location)
	assert.Zero(t, v.Clock)
	assert.Zero(t, v.Load)
	assert.Empty(t, v.Stack)
	assert.Empty(t, v.Route)
}

func TestOrderSetSequence(t *testing.T) {
	s := NewOrderSet(
		mustOrder(t, 3, 1, 2, 1, 0, 10),
		mustOrder(t, 1, 1, 2, 1, 0, 10),
		mustOrder(t, 2, 1, 2, 1, 0, 10),
	)
	assert.Equal(t, []int{3, 1, 2}, s.Keys())
	assert.Equal(t, []int{1, 2, 3}, s.SortedIDs())

	require.True(t, s.Swap(3, 2))
	assert.Equal(t, []int{2, 1, 3}, s.Keys())
	assert.False(t, s.Swap(3, 42))

	o, ok := s.Remove(2)
	require.True(t, ok)
	s.Insert(o)
	assert.Equal(t, []int{1, 3, 2}, s.Keys())

	var visited []int
	s.Each(func(o *Order) { visited = append(visited, o.ID) })
	assert.Equal(t, []int{1, 2, 3}, visited)
}

func TestOrderSetCloneIsDeep(t *testing.T) {
	s := NewOrderSet(mustOrder(t, 1, 1, 2, 1, 0, 10), mustOrder(t, 2, 2, 3, 1, 0, 10))
	c := s.Clone()

	co, _ := c.Get(1)
	co.Delivery = 3
	co.MarkPicked()
	c.Swap(1, 2)

	o, _ := s.Get(1)
	assert.Equal(t, 2, o.Delivery)
	assert.False(t, o.Picked)
	assert.Equal(t, []int{1, 2}, s.Keys())
}

func TestFleetCloneAndIDs(t *testing.T) {
	f := Fleet{NewVehicle(2, 4, 0), NewVehicle(1, 5, 0)}
	c := f.Clone()
	c[0].Clock = 50

	assert.Zero(t, f[0].Clock)
	assert.Equal(t, []int{1, 2}, f.IDs())
	v, ok := f.Get(1)
	require.True(t, ok)
	assert.Equal(t, 5, v.Capacity)
	_, ok = f.Get(9)
	assert.False(t, ok)
}

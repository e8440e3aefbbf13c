package opt

import "dvrp/internal/model"

// Rand is the randomness the operators need. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Move identifies a neighbourhood operator tried during the local phase.
type Move int

const (
	MovePairExchange Move = iota
	MoveBlockExchange
	MoveBlockRelocate
	MoveMultiRelocate
	numMoves
)

var moveNames = [numMoves]string{"pair_exchange", "block_exchange", "block_relocate", "multi_relocate"}

// Moves is the fixed order in which a round tries operators.
var Moves = [numMoves]Move{MovePairExchange, MoveBlockExchange, MoveBlockRelocate, MoveMultiRelocate}

func (m Move) String() string {
	if m < 0 || m >= numMoves {
		return "unknown"
	}
	return moveNames[m]
}

// Apply returns a new order set produced by m. The input is never mutated.
func (m Move) Apply(orders *model.OrderSet, r Rand) *model.OrderSet {
	switch m {
	case MovePairExchange:
		return PairExchange(orders, r)
	case MoveBlockExchange:
		return BlockExchange(orders, r)
	case MoveBlockRelocate:
		return BlockRelocate(orders, r)
	case MoveMultiRelocate:
		return MultiRelocate(orders, r)
	}
	return orders.Clone()
}

// pickTwo draws two distinct ids from the insertion sequence.
func pickTwo(keys []int, r Rand) (int, int) {
	n := len(keys)
	i := r.Intn(n)
	j := r.Intn(n - 1)
	if j >= i {
		j++
	}
	return keys[i], keys[j]
}

// PairExchange swaps the delivery plants of two orders. Pickups stay put, so
// an order may end up delivering where it picks up.
func PairExchange(orders *model.OrderSet, r Rand) *model.OrderSet {
	out := orders.Clone()
	keys := out.Keys()
	if len(keys) < 2 {
		return out
	}
	a, b := pickTwo(keys, r)
	oa, _ := out.Get(a)
	ob, _ := out.Get(b)
	oa.Delivery, ob.Delivery = ob.Delivery, oa.Delivery
	return out
}

// BlockExchange swaps two orders' positions in the sequence.
func BlockExchange(orders *model.OrderSet, r Rand) *model.OrderSet {
	out := orders.Clone()
	keys := out.Keys()
	if len(keys) < 2 {
		return out
	}
	a, b := pickTwo(keys, r)
	out.Swap(a, b)
	return out
}

// BlockRelocate moves one order to the end of the sequence. It draws two ids
// like the exchange moves and relocates the first.
func BlockRelocate(orders *model.OrderSet, r Rand) *model.OrderSet {
	out := orders.Clone()
	keys := out.Keys()
	if len(keys) < 2 {
		return out
	}
	a, _ := pickTwo(keys, r)
	if o, ok := out.Remove(a); ok {
		out.Insert(o)
	}
	return out
}

func MultiRelocate(orders *model.OrderSet, r Rand) *model.OrderSet {
	return BlockRelocate(BlockRelocate(orders, r), r)
}

// Disturb is the large step taken from the incumbent when no local move improves.
func Disturb(orders *model.OrderSet, r Rand) *model.OrderSet {
	return PairExchange(orders, r)
}

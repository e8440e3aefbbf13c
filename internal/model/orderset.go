package model

import "sort"

// OrderSet owns a collection of orders keyed by id and remembers the
// sequence in which they were inserted. Dispatch never depends on that
// sequence; the optimizer's block moves only reshuffle it.
type OrderSet struct {
	byID map[int]*Order
	seq  []int
}

func NewOrderSet(orders ...*Order) *OrderSet {
	s := &OrderSet{byID: make(map[int]*Order, len(orders))}
	for _, o := range orders {
		s.Insert(o)
	}
	return s
}

func (s *OrderSet) Len() int { return len(s.seq) }

func (s *OrderSet) Get(id int) (*Order, bool) {
	o, ok := s.byID[id]
	return o, ok
}

// Keys returns ids in insertion sequence.
func (s *OrderSet) Keys() []int {
	return append([]int(nil), s.seq...)
}

// SortedIDs returns ids in ascending order.
func (s *OrderSet) SortedIDs() []int {
	ids := s.Keys()
	sort.Ints(ids)
	return ids
}

// Insert adds o at the end of the sequence, replacing any order with the same id.
func (s *OrderSet) Insert(o *Order) {
	if _, ok := s.byID[o.ID]; ok {
		s.Remove(o.ID)
	}
	s.byID[o.ID] = o
	s.seq = append(s.seq, o.ID)
}

// Remove detaches and returns the order with the given id.
func (s *OrderSet) Remove(id int) (*Order, bool) {
	o, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	for i, k := range s.seq {
		if k == id {
			s.seq = append(s.seq[:i], s.seq[i+1:]...)
			break
		}
	}
	return o, true
}

// Swap exchanges the sequence slots of two ids.
func (s *OrderSet) Swap(a, b int) bool {
	ia, ib := -1, -1
	for i, k := range s.seq {
		switch k {
		case a:
			ia = i
		case b:
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return false
	}
	s.seq[ia], s.seq[ib] = s.seq[ib], s.seq[ia]
	return true
}

// Each visits orders in ascending id order.
func (s *OrderSet) Each(fn func(*Order)) {
	for _, id := range s.SortedIDs() {
		fn(s.byID[id])
	}
}

// Clone deep copies every order and keeps the sequence.
func (s *OrderSet) Clone() *OrderSet {
	c := &OrderSet{byID: make(map[int]*Order, len(s.byID)), seq: s.Keys()}
	for id, o := range s.byID {
		c.byID[id] = o.Clone()
	}
	return c
}

package orderbook

import "github.com/sauravnith/swirly/domain/rbtree"

// Side is one half of a book: price levels ordered best first, and every
// resting order linked in priority order (level by level, oldest first).
type Side struct {
	levels *rbtree.Tree[*Level]
	first  *Order
	last   *Order

	LastTicks int64
	LastLots  int64
	LastTime  int64
}

func NewSide() *Side {
	return &Side{levels: rbtree.New[*Level]()}
}

// FirstOrder returns the order with the highest priority, or nil.
func (s *Side) FirstOrder() *Order { return s.first }

func (s *Side) LastOrder() *Order { return s.last }

func (s *Side) Empty() bool { return s.first == nil }

// FirstLevel returns the best level, or nil.
func (s *Side) FirstLevel() *Level {
	n := s.levels.First()
	if n == nil {
		return nil
	}
	return n.Value
}

// NextLevel returns the level after l in price priority, or nil.
func (s *Side) NextLevel(l *Level) *Level {
	n := s.levels.Next(l.node)
	if n == nil {
		return nil
	}
	return n.Value
}

// FindLevel returns the level at ticks for orders of the given action.
func (s *Side) FindLevel(action Action, ticks int64) *Level {
	n := s.levels.Find(LevelKey(action, ticks))
	if n == nil {
		return nil
	}
	return n.Value
}

func (s *Side) LevelCount() int { return s.levels.Len() }

// InsertOrder appends o to the level at its price, creating the level on
// first use.
func (s *Side) InsertOrder(o *Order) {
	n, created := s.levels.Insert(LevelKey(o.Action, o.Ticks), nil)
	if created {
		n.Value = &Level{Ticks: o.Ticks, node: n}
	}
	lvl := n.Value

	if created {
		if next := s.levels.Next(n); next != nil {
			s.linkBefore(next.Value.first, o)
		} else {
			s.linkAfter(s.last, o)
		}
		lvl.first = o
	} else {
		s.linkAfter(lvl.last, o)
	}
	lvl.last = o
	lvl.Lots += o.Resd
	lvl.Count++
	o.level = lvl
}

// RemoveOrder detaches o from its level, destroying the level when it
// drains. The order's own fields are not modified.
func (s *Side) RemoveOrder(o *Order) {
	lvl := o.level
	if lvl == nil {
		return
	}
	lvl.Lots -= o.Resd
	lvl.Count--
	if lvl.Count == 0 {
		s.levels.Remove(lvl.node)
		lvl.first, lvl.last = nil, nil
	} else {
		if lvl.first == o {
			lvl.first = o.next
		}
		if lvl.last == o {
			lvl.last = o.prev
		}
	}
	s.unlink(o)
	o.level = nil
}

// TakeOrder fills lots of o. The order keeps its queue position unless it
// is fully filled, in which case it leaves the side.
func (s *Side) TakeOrder(o *Order, lots int64, now int64) {
	if lvl := o.level; lvl != nil {
		lvl.Lots -= lots
	}
	o.Resd -= lots
	o.Exec += lots
	o.LastTicks = o.Ticks
	o.LastLots = lots
	o.Rev++
	o.Modified = now
	if o.Resd == 0 {
		o.Status = Filled
		s.RemoveOrder(o)
	} else {
		o.Status = Partial
	}

	s.LastTicks = o.Ticks
	s.LastLots = lots
	s.LastTime = now
}

// ReviseOrder reduces the total lots of o to lots. Queue position is kept.
// The caller validates exec <= lots <= o.Lots.
func (s *Side) ReviseOrder(o *Order, lots int64, now int64) {
	delta := o.Lots - lots
	if lvl := o.level; lvl != nil {
		lvl.Lots -= delta
	}
	o.Lots = lots
	o.Resd -= delta
	o.Rev++
	o.Status = Revised
	o.Modified = now
	if o.Resd == 0 {
		s.RemoveOrder(o)
	}
}

// CancelOrder removes o and marks it cancelled. Executed lots are kept.
func (s *Side) CancelOrder(o *Order, now int64) {
	s.RemoveOrder(o)
	o.Rev++
	o.Status = Cancelled
	o.Resd = 0
	o.Modified = now
}

/******************** Order list ********************/

func (s *Side) linkAfter(at, o *Order) {
	o.prev = at
	if at == nil {
		o.next = s.first
		if s.first != nil {
			s.first.prev = o
		}
		s.first = o
	} else {
		o.next = at.next
		if at.next != nil {
			at.next.prev = o
		}
		at.next = o
	}
	if o.next == nil {
		s.last = o
	}
}

func (s *Side) linkBefore(at, o *Order) {
	s.linkAfter(at.prev, o)
}

func (s *Side) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		s.first = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		s.last = o.prev
	}
	o.prev, o.next = nil, nil
}

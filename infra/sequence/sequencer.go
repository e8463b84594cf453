package sequence

import "sync/atomic"

// Sequencer hands out order, trade and match ids. Ids only ever increase,
// including across AdvanceTo.
type Sequencer struct {
	last atomic.Uint64
}

// New returns a sequencer whose first id is after+1.
func New(after uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(after)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last id handed out, or the starting point if none.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// AdvanceTo moves the sequence up to id. It reports false and leaves the
// sequence alone when id is not ahead of it.
func (s *Sequencer) AdvanceTo(id uint64) bool {
	for {
		cur := s.last.Load()
		if id <= cur {
			return false
		}
		if s.last.CompareAndSwap(cur, id) {
			return true
		}
	}
}

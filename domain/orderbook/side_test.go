package orderbook

import (
	"testing"

	"pgregory.net/rapid"
)

type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

var nextID uint64

func newOrder(action Action, ticks, lots int64) *Order {
	nextID++
	return &Order{
		ID:     nextID,
		Action: action,
		Ticks:  ticks,
		Lots:   lots,
		Resd:   lots,
		Status: Placed,
		Rev:    1,
	}
}

// checkSide verifies level aggregates, level ordering and list linkage.
func checkSide(tb fataler, s *Side) {
	tb.Helper()

	var prevKey int64
	first := true
	o := s.FirstOrder()
	for l := s.FirstLevel(); l != nil; l = s.NextLevel(l) {
		if l.Count == 0 {
			tb.Fatalf("empty level %v left in index", l)
		}
		if !first && l.Key() <= prevKey {
			tb.Fatalf("levels out of order: %d after %d", l.Key(), prevKey)
		}
		first = false
		prevKey = l.Key()

		if o != l.First() {
			tb.Fatalf("level %v does not start at the next listed order", l)
		}
		var lots int64
		for i := 0; i < l.Count; i++ {
			if o == nil {
				tb.Fatalf("order list ended inside level %v", l)
			}
			if o.Level() != l || o.Ticks != l.Ticks {
				tb.Fatalf("order %d listed under wrong level %v", o.ID, l)
			}
			if o.Resd+o.Exec != o.Lots {
				tb.Fatalf("order %d: resd %d + exec %d != lots %d", o.ID, o.Resd, o.Exec, o.Lots)
			}
			lots += o.Resd
			o = o.Next()
		}
		if lots != l.Lots {
			tb.Fatalf("level %v: members sum to %d lots", l, lots)
		}
	}
	if o != nil {
		tb.Fatalf("order %d listed outside any level", o.ID)
	}
}

func TestLevelKeySortsBestFirst(t *testing.T) {
	if k := LevelKey(Buy, 12345); k != -12345 {
		t.Fatalf("buy key = %d, want -12345", k)
	}
	if k := LevelKey(Sell, 12345); k != 12345 {
		t.Fatalf("sell key = %d, want 12345", k)
	}

	bids := NewSide()
	for _, ticks := range []int64{100, 102, 101} {
		bids.InsertOrder(newOrder(Buy, ticks, 1))
	}
	if best := bids.FirstLevel(); best.Ticks != 102 {
		t.Fatalf("best bid = %d, want 102", best.Ticks)
	}

	offers := NewSide()
	for _, ticks := range []int64{100, 102, 101} {
		offers.InsertOrder(newOrder(Sell, ticks, 1))
	}
	if best := offers.FirstLevel(); best.Ticks != 100 {
		t.Fatalf("best offer = %d, want 100", best.Ticks)
	}
	checkSide(t, bids)
	checkSide(t, offers)
}

func TestInsertKeepsArrivalOrderWithinLevel(t *testing.T) {
	s := NewSide()
	a := newOrder(Buy, 100, 10)
	b := newOrder(Buy, 99, 4)
	c := newOrder(Buy, 100, 5)
	d := newOrder(Buy, 101, 1)
	for _, o := range []*Order{a, b, c, d} {
		s.InsertOrder(o)
	}

	want := []*Order{d, a, c, b}
	i := 0
	for o := s.FirstOrder(); o != nil; o = o.Next() {
		if o != want[i] {
			t.Fatalf("position %d: got order %d, want %d", i, o.ID, want[i].ID)
		}
		i++
	}
	lvl := s.FindLevel(Buy, 100)
	if lvl.Lots != 15 || lvl.Count != 2 || lvl.First() != a {
		t.Fatalf("unexpected level %v", lvl)
	}
	checkSide(t, s)
}

func TestTakePartialKeepsPosition(t *testing.T) {
	s := NewSide()
	a := newOrder(Buy, 100, 10)
	b := newOrder(Buy, 100, 5)
	s.InsertOrder(a)
	s.InsertOrder(b)

	s.TakeOrder(a, 4, 7)
	if a.Resd != 6 || a.Exec != 4 || a.Rev != 2 || a.Modified != 7 {
		t.Fatalf("unexpected order after take: %+v", a.Snapshot())
	}
	if a.Status != Partial || a.LastLots != 4 || a.LastTicks != 100 {
		t.Fatalf("unexpected fill fields: %+v", a.Snapshot())
	}
	if s.FirstOrder() != a {
		t.Fatal("partially filled order lost its priority")
	}
	if lvl := s.FirstLevel(); lvl.Lots != 11 {
		t.Fatalf("level lots = %d, want 11", lvl.Lots)
	}
	if s.LastTicks != 100 || s.LastLots != 4 || s.LastTime != 7 {
		t.Fatal("side last trade not recorded")
	}
	checkSide(t, s)
}

func TestTakeFullRemovesOrderAndDrainsLevel(t *testing.T) {
	s := NewSide()
	a := newOrder(Sell, 100, 10)
	s.InsertOrder(a)
	s.TakeOrder(a, 10, 1)

	if a.Resting() || a.Status != Filled || !a.Done() {
		t.Fatalf("filled order still resting: %+v", a.Snapshot())
	}
	if s.LevelCount() != 0 || !s.Empty() {
		t.Fatal("drained level left in side")
	}
}

func TestReviseKeepsPositionAndAdjustsLevel(t *testing.T) {
	s := NewSide()
	a := newOrder(Buy, 100, 10)
	b := newOrder(Buy, 100, 5)
	s.InsertOrder(a)
	s.InsertOrder(b)
	s.TakeOrder(a, 2, 1)

	s.ReviseOrder(a, 6, 2)
	if a.Lots != 6 || a.Resd != 4 || a.Exec != 2 || a.Status != Revised {
		t.Fatalf("unexpected revised order: %+v", a.Snapshot())
	}
	if s.FirstOrder() != a {
		t.Fatal("revision moved the order")
	}
	if lvl := s.FirstLevel(); lvl.Lots != 9 {
		t.Fatalf("level lots = %d, want 9", lvl.Lots)
	}
	checkSide(t, s)

	// Revising down to executed lots leaves nothing to rest.
	s.ReviseOrder(a, 2, 3)
	if a.Resting() || !a.Done() {
		t.Fatal("order with no residual left resting")
	}
	checkSide(t, s)
}

func TestCancelKeepsExec(t *testing.T) {
	s := NewSide()
	a := newOrder(Sell, 100, 10)
	s.InsertOrder(a)
	s.TakeOrder(a, 3, 1)
	rev := a.Rev

	s.CancelOrder(a, 2)
	if a.Status != Cancelled || a.Resd != 0 || a.Exec != 3 || a.Rev != rev+1 {
		t.Fatalf("unexpected cancelled order: %+v", a.Snapshot())
	}
	if s.LevelCount() != 0 {
		t.Fatal("level survived cancel of last order")
	}
}

func TestRemoveMiddleOrder(t *testing.T) {
	s := NewSide()
	a := newOrder(Buy, 100, 1)
	b := newOrder(Buy, 100, 2)
	c := newOrder(Buy, 100, 3)
	for _, o := range []*Order{a, b, c} {
		s.InsertOrder(o)
	}
	s.RemoveOrder(b)
	if b.Resd != 2 || b.Resting() {
		t.Fatal("remove must detach without touching order fields")
	}
	if a.Next() != c {
		t.Fatal("list not relinked")
	}
	checkSide(t, s)

	s.RemoveOrder(c)
	if lvl := s.FirstLevel(); lvl.Count != 1 || lvl.Lots != 1 {
		t.Fatalf("unexpected level %v", lvl)
	}
	checkSide(t, s)
}

func TestSideNoEmptyLevels(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		action := Buy
		if rapid.Bool().Draw(t, "sell") {
			action = Sell
		}
		s := NewSide()
		var live []*Order

		steps := rapid.IntRange(1, 150).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.IntRange(0, 4).Draw(t, "op")
			if op == 0 || len(live) == 0 {
				o := newOrder(action, rapid.Int64Range(95, 105).Draw(t, "ticks"), rapid.Int64Range(1, 20).Draw(t, "lots"))
				s.InsertOrder(o)
				live = append(live, o)
				checkSide(t, s)
				continue
			}
			idx := rapid.IntRange(0, len(live)-1).Draw(t, "idx")
			o := live[idx]
			switch op {
			case 1:
				s.RemoveOrder(o)
			case 2:
				s.TakeOrder(o, rapid.Int64Range(1, o.Resd).Draw(t, "take"), int64(i))
			case 3:
				s.ReviseOrder(o, rapid.Int64Range(o.Exec, o.Lots).Draw(t, "revise"), int64(i))
			case 4:
				s.CancelOrder(o, int64(i))
			}
			if !o.Resting() {
				live = append(live[:idx], live[idx+1:]...)
			}
			checkSide(t, s)
		}
	})
}

package matching

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/instrument"
	"github.com/sauravnith/swirly/domain/orderbook"
)

type counterIDs struct {
	next   uint64
	failAt uint64
}

func (c *counterIDs) AllocID() (uint64, error) {
	c.next++
	if c.failAt != 0 && c.next >= c.failAt {
		return 0, errors.New("ids exhausted")
	}
	return c.next, nil
}

type fixture struct {
	ids    *counterIDs
	execs  *account.ExecPool
	engine *Engine
	book   *orderbook.Book
	nextID uint64
}

func newFixture() *fixture {
	ids := &counterIDs{next: 1000}
	execs := account.NewExecPool()
	c := &instrument.Contract{ID: 1, Mnem: "EURUSD"}
	return &fixture{
		ids:    ids,
		execs:  execs,
		engine: NewEngine(ids, execs),
		book:   orderbook.NewBook(c, instrument.JD(2014, time.March, 14)),
	}
}

func (f *fixture) order(action orderbook.Action, ticks, lots int64) *orderbook.Order {
	f.nextID++
	return &orderbook.Order{
		ID:       f.nextID,
		Account:  f.nextID * 10,
		Contract: f.book.Contract.ID,
		SettlDay: f.book.SettlDay,
		Status:   orderbook.Placed,
		Action:   action,
		Ticks:    ticks,
		Lots:     lots,
		Resd:     lots,
		Rev:      1,
	}
}

func (f *fixture) rest(action orderbook.Action, ticks, lots int64) *orderbook.Order {
	o := f.order(action, ticks, lots)
	f.book.InsertOrder(o)
	return o
}

func TestMatchTwoMakersSameLevel(t *testing.T) {
	f := newFixture()
	first := f.rest(orderbook.Buy, 100, 10)
	second := f.rest(orderbook.Buy, 100, 5)
	taker := f.order(orderbook.Sell, 100, 12)

	trans, err := f.engine.Match(f.book, taker, 1)
	if err != nil {
		t.Fatal(err)
	}
	if trans.Count() != 2 || trans.Taken != 12 || trans.Outcome() != Filled {
		t.Fatalf("unexpected transaction: count=%d taken=%d outcome=%v", trans.Count(), trans.Taken, trans.Outcome())
	}

	m0, m1 := trans.Matches[0], trans.Matches[1]
	if m0.MakerOrder != first || m0.Lots != 10 || m0.MakerExec.Resd != 0 || m0.MakerExec.Status != orderbook.Filled {
		t.Fatalf("unexpected first match %+v", m0)
	}
	if m1.MakerOrder != second || m1.Lots != 2 || m1.MakerExec.Resd != 3 || m1.MakerExec.Status != orderbook.Partial {
		t.Fatalf("unexpected second match %+v", m1)
	}
	if te := m1.TakerExec; te.Resd != 0 || te.Exec != 12 || te.Status != orderbook.Filled || te.Role != account.Taker {
		t.Fatalf("unexpected final taker exec %+v", te)
	}
	if m0.TakerExec.Cpty != first.Account || m0.MakerExec.Cpty != taker.Account {
		t.Fatal("counterparties not recorded")
	}
	if m0.TakerExec.MatchID != m0.ID || m0.MakerExec.MatchID != m0.ID {
		t.Fatal("execs not tied to their match")
	}

	// Matching leaves the book untouched.
	if first.Resd != 10 || second.Resd != 5 {
		t.Fatal("matching mutated maker orders")
	}
	if lvl := f.book.Bid().FirstLevel(); lvl.Lots != 15 || lvl.Count != 2 {
		t.Fatalf("matching mutated level %v", lvl)
	}
	if taker.Resd != 12 || taker.Exec != 0 {
		t.Fatal("matching mutated the taker")
	}
}

func TestMatchBestPriceFirstAtMakerPrice(t *testing.T) {
	f := newFixture()
	worse := f.rest(orderbook.Sell, 102, 5)
	better := f.rest(orderbook.Sell, 101, 5)
	f.rest(orderbook.Sell, 104, 5)
	taker := f.order(orderbook.Buy, 103, 8)

	trans, err := f.engine.Match(f.book, taker, 1)
	if err != nil {
		t.Fatal(err)
	}
	if trans.Count() != 2 {
		t.Fatalf("count = %d, want 2", trans.Count())
	}
	if m := trans.Matches[0]; m.MakerOrder != better || m.Ticks != 101 || m.TakerExec.LastTicks != 101 {
		t.Fatalf("first match not at best offer: %+v", m)
	}
	if m := trans.Matches[1]; m.MakerOrder != worse || m.Ticks != 102 || m.Lots != 3 {
		t.Fatalf("second match unexpected: %+v", m)
	}
	if trans.Outcome() != Filled {
		t.Fatalf("outcome = %v", trans.Outcome())
	}
}

func TestMatchStopsWhenPricesDoNotCross(t *testing.T) {
	f := newFixture()
	f.rest(orderbook.Buy, 99, 5)
	taker := f.order(orderbook.Sell, 100, 5)

	trans, err := f.engine.Match(f.book, taker, 1)
	if err != nil {
		t.Fatal(err)
	}
	if trans.Count() != 0 || trans.Outcome() != Resting {
		t.Fatalf("unexpected transaction %+v", trans)
	}
}

func TestMatchPartialWhenSideExhausted(t *testing.T) {
	f := newFixture()
	f.rest(orderbook.Sell, 100, 4)
	taker := f.order(orderbook.Buy, 100, 10)

	trans, err := f.engine.Match(f.book, taker, 1)
	if err != nil {
		t.Fatal(err)
	}
	if trans.Taken != 4 || trans.Outcome() != PartiallyFilled {
		t.Fatalf("taken=%d outcome=%v", trans.Taken, trans.Outcome())
	}
}

func TestMatchTakerMinLotDoesNotLimitClips(t *testing.T) {
	f := newFixture()
	f.rest(orderbook.Sell, 100, 2)
	taker := f.order(orderbook.Buy, 100, 10)
	taker.MinLots = 5

	trans, err := f.engine.Match(f.book, taker, 1)
	if err != nil {
		t.Fatal(err)
	}
	if trans.Taken != 2 {
		t.Fatalf("taken = %d, want 2", trans.Taken)
	}
}

func TestMatchSkipsMakerBelowMinLot(t *testing.T) {
	f := newFixture()
	picky := f.rest(orderbook.Sell, 100, 10)
	picky.MinLots = 5
	other := f.rest(orderbook.Sell, 100, 10)
	taker := f.order(orderbook.Buy, 100, 3)

	trans, err := f.engine.Match(f.book, taker, 1)
	if err != nil {
		t.Fatal(err)
	}
	if trans.Count() != 1 || trans.Matches[0].MakerOrder != other {
		t.Fatalf("expected the clip to skip the min-lot maker, got %+v", trans.Matches)
	}

	// A clip that reaches the minimum is accepted.
	big := f.order(orderbook.Buy, 100, 6)
	trans, err = f.engine.Match(f.book, big, 2)
	if err != nil {
		t.Fatal(err)
	}
	if trans.Matches[0].MakerOrder != picky || trans.Matches[0].Lots != 6 {
		t.Fatalf("expected min-lot maker to fill, got %+v", trans.Matches[0])
	}
}

func TestMatchAllocFailureDiscards(t *testing.T) {
	f := newFixture()
	f.rest(orderbook.Buy, 100, 1)
	f.rest(orderbook.Buy, 100, 1)
	f.ids.failAt = f.ids.next + 5
	taker := f.order(orderbook.Sell, 100, 2)

	if _, err := f.engine.Match(f.book, taker, 1); err == nil {
		t.Fatal("expected allocation failure")
	}
	if lvl := f.book.Bid().FirstLevel(); lvl.Count != 2 {
		t.Fatal("book changed on failed match")
	}
}

func TestDiscardReleasesExecs(t *testing.T) {
	f := newFixture()
	f.rest(orderbook.Buy, 100, 1)
	trans, err := f.engine.Match(f.book, f.order(orderbook.Sell, 100, 1), 1)
	if err != nil {
		t.Fatal(err)
	}
	te := trans.Matches[0].TakerExec
	f.engine.Discard(trans)
	if te.Refs() != 0 || trans.Count() != 0 || trans.Taken != 0 {
		t.Fatal("transaction not discarded")
	}
}

func TestMatchConservationAndPriority(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		n := rapid.IntRange(0, 30).Draw(t, "makers")
		for i := 0; i < n; i++ {
			o := f.rest(orderbook.Buy, rapid.Int64Range(95, 105).Draw(t, "ticks"), rapid.Int64Range(1, 10).Draw(t, "lots"))
			if rapid.IntRange(0, 4).Draw(t, "picky") == 0 {
				o.MinLots = rapid.Int64Range(1, o.Lots).Draw(t, "minLots")
			}
		}
		taker := f.order(orderbook.Sell, rapid.Int64Range(95, 105).Draw(t, "takerTicks"), rapid.Int64Range(1, 60).Draw(t, "takerLots"))

		trans, err := f.engine.Match(f.book, taker, 1)
		if err != nil {
			t.Fatal(err)
		}

		var sum int64
		var prevTicks int64 = 1 << 62
		var prevID uint64
		for i, m := range trans.Matches {
			sum += m.Lots
			if m.Lots <= 0 || m.Lots > m.MakerOrder.Resd {
				t.Fatalf("match %d: lots %d outside (0, %d]", i, m.Lots, m.MakerOrder.Resd)
			}
			if m.Ticks < taker.Ticks {
				t.Fatalf("match %d at %d does not cross %d", i, m.Ticks, taker.Ticks)
			}
			if m.Ticks > prevTicks || (m.Ticks == prevTicks && m.MakerOrder.ID < prevID) {
				t.Fatalf("match %d violates price-time priority", i)
			}
			prevTicks, prevID = m.Ticks, m.MakerOrder.ID
			if te := m.TakerExec; te.Resd+te.Exec != taker.Lots {
				t.Fatalf("taker exec %d: resd %d + exec %d != %d", i, te.Resd, te.Exec, taker.Lots)
			}
			if me := m.MakerExec; me.Resd+me.Exec != m.MakerOrder.Lots {
				t.Fatalf("maker exec %d not conserved", i)
			}
		}
		if sum != trans.Taken || trans.Taken > taker.Resd {
			t.Fatalf("sum %d, taken %d, taker resd %d", sum, trans.Taken, taker.Resd)
		}
		if last := trans.Last(); last != nil && last.TakerExec.Exec != trans.Taken {
			t.Fatalf("last taker exec %d != taken %d", last.TakerExec.Exec, trans.Taken)
		}

		// Crossing liquidity left unmatched must be min-lot constrained.
		if trans.Taken < taker.Resd {
			matched := make(map[*orderbook.Order]bool)
			for _, m := range trans.Matches {
				matched[m.MakerOrder] = true
			}
			for o := f.book.Bid().FirstOrder(); o != nil && o.Ticks >= taker.Ticks; o = o.Next() {
				if !matched[o] && o.MinLots == 0 {
					t.Fatalf("crossing maker %d left unmatched", o.ID)
				}
			}
		}
	})
}

package matching

import (
	"fmt"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
)

// IDAllocator hands out globally unique identifiers.
type IDAllocator interface {
	AllocID() (uint64, error)
}

// Engine matches a taker against the opposite side of a book. It reads the
// book but never modifies it; the resulting Transaction is applied by the
// caller after it has been made durable.
type Engine struct {
	ids   IDAllocator
	execs *account.ExecPool
}

func NewEngine(ids IDAllocator, execs *account.ExecPool) *Engine {
	return &Engine{ids: ids, execs: execs}
}

// Match walks the opposite side in price-time priority and records a
// match against every crossing maker until the taker is filled.
//
// Fills execute at the maker's price. A maker whose minimum fill has not
// been reached is skipped when the clip would neither reach it nor fill the
// maker completely.
func (e *Engine) Match(book *orderbook.Book, taker *orderbook.Order, now int64) (*Transaction, error) {
	trans := &Transaction{Taker: taker, Resd: taker.Resd}
	side := book.Side(taker.Action.Opposite())

	resd := taker.Resd
	exec := taker.Exec
	for maker := side.FirstOrder(); maker != nil && resd > 0; maker = maker.Next() {
		if !crosses(taker, maker.Ticks) {
			break
		}
		lots := min(resd, maker.Resd)
		if !acceptsClip(maker, lots) {
			continue
		}

		m, err := e.newMatch(taker, maker, lots, resd-lots, exec+lots, now)
		if err != nil {
			e.Discard(trans)
			return nil, err
		}
		trans.Matches = append(trans.Matches, m)
		trans.Taken += lots
		resd -= lots
		exec += lots
	}
	return trans, nil
}

// Discard releases the execution records held by an unapplied transaction.
func (e *Engine) Discard(t *Transaction) {
	for _, m := range t.Matches {
		e.execs.Release(m.TakerExec)
		e.execs.Release(m.MakerExec)
	}
	t.Matches = nil
	t.Taken = 0
}

func (e *Engine) newMatch(
	taker, maker *orderbook.Order,
	lots, takerResd, takerExec int64,
	now int64,
) (*Match, error) {
	matchID, err := e.ids.AllocID()
	if err != nil {
		return nil, fmt.Errorf("alloc match id: %w", err)
	}
	takerID, err := e.ids.AllocID()
	if err != nil {
		return nil, fmt.Errorf("alloc taker exec id: %w", err)
	}
	makerID, err := e.ids.AllocID()
	if err != nil {
		return nil, fmt.Errorf("alloc maker exec id: %w", err)
	}

	te := e.execs.Get()
	fillExec(te, takerID, taker, maker.Ticks, lots, takerResd, takerExec, now)
	te.MatchID = matchID
	te.Role = account.Taker
	te.Cpty = maker.Account

	me := e.execs.Get()
	fillExec(me, makerID, maker, maker.Ticks, lots, maker.Resd-lots, maker.Exec+lots, now)
	me.MatchID = matchID
	me.Role = account.Maker
	me.Cpty = taker.Account

	return &Match{
		ID:         matchID,
		Ticks:      maker.Ticks,
		Lots:       lots,
		TakerExec:  te,
		MakerOrder: maker,
		MakerExec:  me,
	}, nil
}

func fillExec(e *account.Exec, id uint64, o *orderbook.Order, ticks, lots, resd, exec, now int64) {
	e.ID = id
	e.OrderID = o.ID
	e.Trader = o.Trader
	e.Account = o.Account
	e.Contract = o.Contract
	e.SettlDay = o.SettlDay
	e.Ref = o.Ref
	e.Action = o.Action
	e.Ticks = o.Ticks
	e.Lots = o.Lots
	e.Resd = resd
	e.Exec = exec
	e.LastTicks = ticks
	e.LastLots = lots
	e.MinLots = o.MinLots
	e.Created = now
	if resd == 0 {
		e.Status = orderbook.Filled
	} else {
		e.Status = orderbook.Partial
	}
}

func crosses(taker *orderbook.Order, ticks int64) bool {
	if taker.Action == orderbook.Buy {
		return ticks <= taker.Ticks
	}
	return ticks >= taker.Ticks
}

func acceptsClip(maker *orderbook.Order, lots int64) bool {
	if maker.MinLots == 0 || maker.Exec >= maker.MinLots {
		return true
	}
	return lots == maker.Resd || maker.Exec+lots >= maker.MinLots
}

package account

import (
	"github.com/sauravnith/swirly/domain/orderbook"
	"github.com/sauravnith/swirly/domain/rbtree"
)

// Trader is a user that places orders. It owns its orders, indexed by id
// and by client reference, and its execution history.
type Trader struct {
	ID      uint64
	Mnem    string
	Display string
	Email   string

	orders *rbtree.Tree[*orderbook.Order]
	refs   map[string]*orderbook.Order
	trades *rbtree.Tree[*Exec]
}

func NewTrader(id uint64, mnem, display, email string) *Trader {
	return &Trader{
		ID:      id,
		Mnem:    mnem,
		Display: display,
		Email:   email,
		orders:  rbtree.New[*orderbook.Order](),
		refs:    make(map[string]*orderbook.Order),
		trades:  rbtree.New[*Exec](),
	}
}

/******************** Orders ********************/

// InsertOrder indexes o. An order with the same id is left in place.
func (t *Trader) InsertOrder(o *orderbook.Order) {
	if _, ok := t.orders.Insert(int64(o.ID), o); ok && o.Ref != "" {
		t.refs[o.Ref] = o
	}
}

// RemoveOrder drops o from both indexes.
func (t *Trader) RemoveOrder(o *orderbook.Order) {
	if n := t.orders.Find(int64(o.ID)); n != nil {
		t.orders.Remove(n)
	}
	if o.Ref != "" && t.refs[o.Ref] == o {
		delete(t.refs, o.Ref)
	}
}

func (t *Trader) FindOrder(id uint64) *orderbook.Order {
	if n := t.orders.Find(int64(id)); n != nil {
		return n.Value
	}
	return nil
}

func (t *Trader) FindOrderByRef(ref string) *orderbook.Order {
	return t.refs[ref]
}

// RefInUse reports whether ref already names one of the trader's orders.
func (t *Trader) RefInUse(ref string) bool {
	_, ok := t.refs[ref]
	return ok
}

func (t *Trader) OrderCount() int { return t.orders.Len() }

// EachOrder visits orders in id order until fn returns false.
func (t *Trader) EachOrder(fn func(*orderbook.Order) bool) {
	t.orders.Ascend(func(n *rbtree.Node[*orderbook.Order]) bool {
		return fn(n.Value)
	})
}

/******************** Trades ********************/

// InsertTrade adds e to the history. The trader takes over the caller's
// reference.
func (t *Trader) InsertTrade(e *Exec) {
	t.trades.Insert(int64(e.ID), e)
}

// RemoveTrade detaches the trade and hands its reference back to the
// caller. It returns nil when id is unknown.
func (t *Trader) RemoveTrade(id uint64) *Exec {
	n := t.trades.Find(int64(id))
	if n == nil {
		return nil
	}
	t.trades.Remove(n)
	return n.Value
}

func (t *Trader) FindTrade(id uint64) *Exec {
	if n := t.trades.Find(int64(id)); n != nil {
		return n.Value
	}
	return nil
}

func (t *Trader) TradeCount() int { return t.trades.Len() }

func (t *Trader) EachTrade(fn func(*Exec) bool) {
	t.trades.Ascend(func(n *rbtree.Node[*Exec]) bool {
		return fn(n.Value)
	})
}

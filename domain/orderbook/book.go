package orderbook

import (
	"github.com/sauravnith/swirly/domain/instrument"
)

// Book pairs the bid and offer sides for one contract and settlement day.
// It is single-writer; callers serialize access.
type Book struct {
	Contract *instrument.Contract
	SettlDay int32

	bid   *Side
	offer *Side
}

func NewBook(c *instrument.Contract, settlDay int32) *Book {
	return &Book{
		Contract: c,
		SettlDay: settlDay,
		bid:      NewSide(),
		offer:    NewSide(),
	}
}

func (b *Book) Key() int64 { return instrument.BookKey(b.Contract.ID, b.SettlDay) }

func (b *Book) Bid() *Side { return b.bid }

func (b *Book) Offer() *Side { return b.offer }

// Side returns the side that rests orders of the given action.
func (b *Book) Side(a Action) *Side {
	if a == Buy {
		return b.bid
	}
	return b.offer
}

func (b *Book) InsertOrder(o *Order) { b.Side(o.Action).InsertOrder(o) }

func (b *Book) RemoveOrder(o *Order) { b.Side(o.Action).RemoveOrder(o) }

func (b *Book) TakeOrder(o *Order, lots int64, now int64) {
	b.Side(o.Action).TakeOrder(o, lots, now)
}

func (b *Book) ReviseOrder(o *Order, lots int64, now int64) {
	b.Side(o.Action).ReviseOrder(o, lots, now)
}

func (b *Book) CancelOrder(o *Order, now int64) {
	b.Side(o.Action).CancelOrder(o, now)
}

package orderbook

import "github.com/sauravnith/swirly/domain/instrument"

type Action int8

const (
	Buy  Action = 1
	Sell Action = -1
)

func (a Action) Opposite() Action { return -a }

func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

type Status uint8

const (
	Placed Status = iota + 1
	Revised
	Cancelled
	Partial
	Filled
)

func (s Status) String() string {
	switch s {
	case Placed:
		return "PLACED"
	case Revised:
		return "REVISED"
	case Cancelled:
		return "CANCELLED"
	case Partial:
		return "PARTIAL"
	case Filled:
		return "FILLED"
	default:
		return "UNKNOWN"
	}
}

// Order is a limit order. Quantities are in lots, prices in ticks.
//
// Resd + Exec == Lots holds at all times except after cancellation, which
// zeroes Resd and leaves Exec untouched.
type Order struct {
	ID        uint64 `json:"id"`
	Trader    uint64 `json:"trader"`
	Account   uint64 `json:"account"`
	Contract  uint32 `json:"contract"`
	SettlDay  int32  `json:"settlDay"`
	Ref       string `json:"ref,omitempty"`
	Status    Status `json:"status"`
	Action    Action `json:"action"`
	Ticks     int64  `json:"ticks"`
	Lots      int64  `json:"lots"`
	Resd      int64  `json:"resd"`
	Exec      int64  `json:"exec"`
	LastTicks int64  `json:"lastTicks,omitempty"`
	LastLots  int64  `json:"lastLots,omitempty"`
	MinLots   int64  `json:"minLots,omitempty"`
	Rev       int32  `json:"rev"`
	Created   int64  `json:"created"`
	Modified  int64  `json:"modified"`

	level *Level
	prev  *Order
	next  *Order
}

// Done reports whether the order has no residual left to trade.
func (o *Order) Done() bool { return o.Resd == 0 }

// Resting reports whether the order is currently held by a side.
func (o *Order) Resting() bool { return o.level != nil }

func (o *Order) Level() *Level { return o.level }

// Next returns the following order in side priority, or nil.
func (o *Order) Next() *Order { return o.next }

func (o *Order) BookKey() int64 { return instrument.BookKey(o.Contract, o.SettlDay) }

// Snapshot returns a detached copy of the order.
func (o *Order) Snapshot() Order {
	c := *o
	c.level, c.prev, c.next = nil, nil, nil
	return c
}

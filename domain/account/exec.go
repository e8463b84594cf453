package account

import (
	"sync/atomic"

	"github.com/sauravnith/swirly/domain/orderbook"
	"github.com/sauravnith/swirly/infra/memory"
)

type Role uint8

const (
	Maker Role = 1
	Taker Role = 2
)

func (r Role) String() string {
	switch r {
	case Maker:
		return "MAKER"
	case Taker:
		return "TAKER"
	default:
		return "UNKNOWN"
	}
}

// Exec is an execution record: the state of an order immediately after one
// fill. The same record is shared by the trader history, the journal and
// the sinks, so its lifetime is reference counted.
type Exec struct {
	ID        uint64           `json:"id"`
	OrderID   uint64           `json:"orderId"`
	Trader    uint64           `json:"trader"`
	Account   uint64           `json:"account"`
	Contract  uint32           `json:"contract"`
	SettlDay  int32            `json:"settlDay"`
	Ref       string           `json:"ref,omitempty"`
	Status    orderbook.Status `json:"status"`
	Action    orderbook.Action `json:"action"`
	Ticks     int64            `json:"ticks"`
	Lots      int64            `json:"lots"`
	Resd      int64            `json:"resd"`
	Exec      int64            `json:"exec"`
	LastTicks int64            `json:"lastTicks"`
	LastLots  int64            `json:"lastLots"`
	MinLots   int64            `json:"minLots,omitempty"`
	MatchID   uint64           `json:"matchId"`
	Role      Role             `json:"role"`
	Cpty      uint64           `json:"cpty"`
	Created   int64            `json:"created"`

	refs atomic.Int32
}

// Retain adds a reference and returns e.
func (e *Exec) Retain() *Exec {
	e.refs.Add(1)
	return e
}

func (e *Exec) Refs() int32 { return e.refs.Load() }

// ExecPool recycles execution records once their last reference is
// released.
type ExecPool struct {
	pool *memory.Pool[Exec]
}

func NewExecPool() *ExecPool {
	return &ExecPool{
		pool: memory.NewPool(
			func() *Exec { return &Exec{} },
			func(e *Exec) { *e = Exec{} },
		),
	}
}

// Get returns a zeroed record holding one reference.
func (p *ExecPool) Get() *Exec {
	e := p.pool.Get()
	e.refs.Store(1)
	return e
}

// Release drops a reference and recycles e when none remain.
func (p *ExecPool) Release(e *Exec) {
	if e.refs.Add(-1) == 0 {
		p.pool.Put(e)
	}
}

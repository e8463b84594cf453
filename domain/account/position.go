package account

import (
	"github.com/sauravnith/swirly/domain/instrument"
	"github.com/sauravnith/swirly/domain/orderbook"
)

// PositionKey packs account, contract and settlement day into one ordering
// key.
func PositionKey(aid uint64, cid uint32, settlDay int32) int64 {
	tjd := instrument.TJD(settlDay)
	return int64((aid&instrument.IDMask)<<40 |
		uint64(cid&instrument.IDMask)<<16 |
		uint64(tjd)&instrument.JDMask)
}

// Position accumulates traded lots and notional (lots times ticks, "licks")
// per side for one account, contract and settlement day.
type Position struct {
	Account   uint64 `json:"account"`
	Contract  uint32 `json:"contract"`
	SettlDay  int32  `json:"settlDay"`
	BuyLicks  int64  `json:"buyLicks"`
	BuyLots   int64  `json:"buyLots"`
	SellLicks int64  `json:"sellLicks"`
	SellLots  int64  `json:"sellLots"`
}

func (p *Position) Key() int64 { return PositionKey(p.Account, p.Contract, p.SettlDay) }

// Add books a fill of lots at ticks on the side given by action.
func (p *Position) Add(action orderbook.Action, ticks, lots int64) {
	licks := lots * ticks
	if action == orderbook.Buy {
		p.BuyLicks += licks
		p.BuyLots += lots
	} else {
		p.SellLicks += licks
		p.SellLots += lots
	}
}

// ApplyExec books the fill carried by e.
func (p *Position) ApplyExec(e *Exec) {
	p.Add(e.Action, e.LastTicks, e.LastLots)
}

// Net returns bought minus sold lots.
func (p *Position) Net() int64 { return p.BuyLots - p.SellLots }

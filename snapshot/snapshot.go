package snapshot

import (
	"time"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
)

type Snapshot struct {
	Seq     uint64
	IDs     uint64
	Created time.Time

	Orders    []orderbook.Order
	Execs     [][]byte
	Positions []account.Position
}

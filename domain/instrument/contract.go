package instrument

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Contract is the static description of a tradable instrument.
type Contract struct {
	ID       uint32          `json:"id"`
	Mnem     string          `json:"mnem"`
	Display  string          `json:"display"`
	Asset    string          `json:"asset"`
	Ccy      string          `json:"ccy"`
	TickSize decimal.Decimal `json:"tickSize"`
	LotSize  int64           `json:"lotSize"`
	PriceDp  int32           `json:"priceDp"`
	MinLots  int64           `json:"minLots"`
	MaxLots  int64           `json:"maxLots"`
}

// Price converts integer ticks to a decimal price.
func (c *Contract) Price(ticks int64) decimal.Decimal {
	return c.TickSize.Mul(decimal.NewFromInt(ticks)).Round(c.PriceDp)
}

// Ticks converts a decimal price to ticks. The price must be an exact
// multiple of the tick size.
func (c *Contract) Ticks(price decimal.Decimal) (int64, error) {
	if !c.TickSize.IsPositive() {
		return 0, fmt.Errorf("contract %s: tick size not set", c.Mnem)
	}
	q := price.Div(c.TickSize)
	if !q.Equal(q.Truncate(0)) {
		return 0, fmt.Errorf("contract %s: price %s is not a multiple of %s", c.Mnem, price, c.TickSize)
	}
	return q.IntPart(), nil
}

// ValidLots reports whether lots is within the contract's order size limits.
// A zero MaxLots means no upper limit.
func (c *Contract) ValidLots(lots int64) bool {
	if lots <= 0 || lots < c.MinLots {
		return false
	}
	return c.MaxLots == 0 || lots <= c.MaxLots
}

func (c *Contract) String() string {
	return fmt.Sprintf("%s(%d)", c.Mnem, c.ID)
}

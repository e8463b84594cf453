package orderbook

import (
	"fmt"

	"github.com/sauravnith/swirly/domain/rbtree"
)

// Level aggregates the resting orders at one price on one side.
//
// Lots is the sum of member residuals and Count the number of members.
// Members are contiguous in the side's order list, oldest first.
type Level struct {
	Ticks int64
	Lots  int64
	Count int

	first *Order
	last  *Order
	node  *rbtree.Node[*Level]
}

// LevelKey orders levels so that ascending keys visit the best price first
// on either side.
func LevelKey(action Action, ticks int64) int64 {
	return -int64(action) * ticks
}

// First returns the oldest order at this price.
func (l *Level) First() *Order { return l.first }

func (l *Level) Key() int64 { return l.node.Key() }

func (l *Level) String() string {
	return fmt.Sprintf("Level{ticks=%d lots=%d count=%d}", l.Ticks, l.Lots, l.Count)
}

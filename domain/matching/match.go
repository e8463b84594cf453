package matching

import (
	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
)

// Match is one fill between the taker and a resting maker order.
type Match struct {
	ID         uint64
	Ticks      int64
	Lots       int64
	TakerExec  *account.Exec
	MakerOrder *orderbook.Order
	MakerExec  *account.Exec
	// MakerPosn is bound by the committer before journaling. It may not be
	// indexed by its account until the transaction is applied.
	MakerPosn *account.Position
}

// Outcome classifies a transaction from the taker's point of view.
type Outcome uint8

const (
	Resting Outcome = iota + 1
	PartiallyFilled
	Filled
)

func (o Outcome) String() string {
	switch o {
	case Resting:
		return "RESTING"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is the ordered set of matches produced for one taker. It is
// either applied as a whole or discarded as a whole.
type Transaction struct {
	Taker   *orderbook.Order
	Matches []*Match
	// Resd is the taker's residual before matching.
	Resd      int64
	Taken     int64
	TakerPosn *account.Position
}

func (t *Transaction) Count() int { return len(t.Matches) }

func (t *Transaction) Outcome() Outcome {
	switch {
	case t.Taken == 0:
		return Resting
	case t.Taken < t.Resd:
		return PartiallyFilled
	default:
		return Filled
	}
}

// Last returns the final match, or nil when nothing matched.
func (t *Transaction) Last() *Match {
	if len(t.Matches) == 0 {
		return nil
	}
	return t.Matches[len(t.Matches)-1]
}

// Execs returns the execution records in journal order: taker then maker
// for each match.
func (t *Transaction) Execs() []*account.Exec {
	out := make([]*account.Exec, 0, 2*len(t.Matches))
	for _, m := range t.Matches {
		out = append(out, m.TakerExec, m.MakerExec)
	}
	return out
}

package account

import "github.com/sauravnith/swirly/domain/rbtree"

// Account is the group that positions are booked against.
type Account struct {
	ID      uint64
	Mnem    string
	Display string

	posns *rbtree.Tree[*Position]
}

func NewAccount(id uint64, mnem, display string) *Account {
	return &Account{
		ID:      id,
		Mnem:    mnem,
		Display: display,
		posns:   rbtree.New[*Position](),
	}
}

// Position returns the position for the contract and settlement day,
// creating an empty one on first use.
func (a *Account) Position(cid uint32, settlDay int32) *Position {
	n, created := a.posns.Insert(PositionKey(a.ID, cid, settlDay), nil)
	if created {
		n.Value = &Position{Account: a.ID, Contract: cid, SettlDay: settlDay}
	}
	return n.Value
}

func (a *Account) FindPosition(cid uint32, settlDay int32) *Position {
	if n := a.posns.Find(PositionKey(a.ID, cid, settlDay)); n != nil {
		return n.Value
	}
	return nil
}

// InsertPosition indexes p, returning the position already held under the
// same key if there is one.
func (a *Account) InsertPosition(p *Position) *Position {
	n, _ := a.posns.Insert(p.Key(), p)
	return n.Value
}

func (a *Account) PositionCount() int { return a.posns.Len() }

func (a *Account) EachPosition(fn func(*Position) bool) {
	a.posns.Ascend(func(n *rbtree.Node[*Position]) bool {
		return fn(n.Value)
	})
}

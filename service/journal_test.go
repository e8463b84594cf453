package service

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/instrument"
	"github.com/sauravnith/swirly/domain/orderbook"
)

var errInjected = errors.New("injected failure")

// memJournal records every call, can fail any of them, and keeps committed
// state as encoded records so that it doubles as a StateReader.
type memJournal struct {
	next      uint64
	calls     []string
	fail      map[string]error
	commitErr error

	pending []func()
	orders  map[uint64][]byte
	execs   map[uint64][]byte
}

func newMemJournal() *memJournal {
	return &memJournal{
		next:   100,
		fail:   make(map[string]error),
		orders: make(map[uint64][]byte),
		execs:  make(map[uint64][]byte),
	}
}

// clone copies committed state and the id counter.
func (j *memJournal) clone() *memJournal {
	c := newMemJournal()
	c.next = j.next
	for k, v := range j.orders {
		c.orders[k] = v
	}
	for k, v := range j.execs {
		c.execs[k] = v
	}
	return c
}

func (j *memJournal) record(op string) error {
	j.calls = append(j.calls, op)
	return j.fail[op]
}

func (j *memJournal) AllocID() (uint64, error) {
	if err := j.record("alloc_id"); err != nil {
		return 0, err
	}
	j.next++
	return j.next, nil
}

func (j *memJournal) Begin() error {
	if err := j.record("begin"); err != nil {
		return err
	}
	j.pending = nil
	return nil
}

func (j *memJournal) InsertOrder(o *orderbook.Order) error {
	if err := j.record("insert_order"); err != nil {
		return err
	}
	b, _ := json.Marshal(o)
	j.pending = append(j.pending, func() { j.orders[o.ID] = b })
	return nil
}

func (j *memJournal) UpdateOrder(id uint64, rev int32, status orderbook.Status, resd, exec, lots, now int64) error {
	if err := j.record("update_order"); err != nil {
		return err
	}
	j.pending = append(j.pending, func() {
		var o orderbook.Order
		_ = json.Unmarshal(j.orders[id], &o)
		o.Rev, o.Status, o.Resd, o.Exec, o.Lots, o.Modified = rev, status, resd, exec, lots, now
		j.orders[id], _ = json.Marshal(&o)
	})
	return nil
}

func (j *memJournal) InsertExec(e *account.Exec) error {
	if err := j.record("insert_exec"); err != nil {
		return err
	}
	b, _ := json.Marshal(e)
	j.pending = append(j.pending, func() { j.execs[e.ID] = b })
	return nil
}

func (j *memJournal) ArchiveOrder(id uint64, now int64) error {
	if err := j.record("archive_order"); err != nil {
		return err
	}
	j.pending = append(j.pending, func() { delete(j.orders, id) })
	return nil
}

func (j *memJournal) ArchiveTrade(id uint64, now int64) error {
	if err := j.record("archive_trade"); err != nil {
		return err
	}
	j.pending = append(j.pending, func() { delete(j.execs, id) })
	return nil
}

func (j *memJournal) Commit() error {
	j.calls = append(j.calls, "commit")
	if j.commitErr != nil {
		return j.commitErr
	}
	for _, fn := range j.pending {
		fn()
	}
	j.pending = nil
	return nil
}

func (j *memJournal) Rollback() error {
	j.calls = append(j.calls, "rollback")
	j.pending = nil
	return nil
}

func (j *memJournal) ReadOrders() ([]*orderbook.Order, error) {
	out := make([]*orderbook.Order, 0, len(j.orders))
	for _, b := range j.orders {
		var o orderbook.Order
		if err := json.Unmarshal(b, &o); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, nil
}

func (j *memJournal) ReadTrades() ([]*account.Exec, error) {
	out := make([]*account.Exec, 0, len(j.execs))
	for _, b := range j.execs {
		e := &account.Exec{}
		if err := json.Unmarshal(b, e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (j *memJournal) ReadPositions() ([]*account.Position, error) {
	trades, err := j.ReadTrades()
	if err != nil {
		return nil, err
	}
	byKey := make(map[int64]*account.Position)
	var out []*account.Position
	for _, e := range trades {
		k := account.PositionKey(e.Account, e.Contract, e.SettlDay)
		p, ok := byKey[k]
		if !ok {
			p = &account.Position{Account: e.Account, Contract: e.Contract, SettlDay: e.SettlDay}
			byKey[k] = p
			out = append(out, p)
		}
		p.ApplyExec(e)
	}
	return out, nil
}

// refData is a fixed reference data set. Each call builds fresh traders and
// accounts so that exchanges never share mutable state.
type refData struct{}

var testContract = &instrument.Contract{
	ID:       1,
	Mnem:     "EURUSD",
	TickSize: decimal.RequireFromString("0.0001"),
	PriceDp:  4,
	LotSize:  1000000,
	MinLots:  1,
	MaxLots:  1000,
}

var testDay = instrument.JD(2014, time.March, 14)

func (refData) ReadContracts() ([]*instrument.Contract, error) {
	return []*instrument.Contract{testContract}, nil
}

func (refData) ReadTraders() ([]*account.Trader, error) {
	return []*account.Trader{
		account.NewTrader(1, "MARAYL", "Mark Aylett", "mark@example.com"),
		account.NewTrader(2, "GOSAYL", "Goska Aylett", "goska@example.com"),
		account.NewTrader(3, "TOBAYL", "Toby Aylett", "toby@example.com"),
	}, nil
}

func (refData) ReadAccounts() ([]*account.Account, error) {
	return []*account.Account{
		account.NewAccount(1, "DBRA", "Account A"),
		account.NewAccount(2, "DBRB", "Account B"),
		account.NewAccount(3, "DBRC", "Account C"),
	}, nil
}

type testModel struct {
	refData
	*memJournal
}

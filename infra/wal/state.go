package wal

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
	"github.com/sauravnith/swirly/snapshot"
)

// state is the committed image of the journal. Nothing in it is shared
// with callers: reads hand out copies.
type state struct {
	seq    uint64
	ids    uint64
	orders map[uint64]*orderbook.Order
	execs  map[uint64][]byte
	posns  map[int64]*account.Position
}

func newState() *state {
	return &state{
		orders: make(map[uint64]*orderbook.Order),
		execs:  make(map[uint64][]byte),
		posns:  make(map[int64]*account.Position),
	}
}

func stateFromSnapshot(s *snapshot.Snapshot) *state {
	st := newState()
	st.seq = s.Seq
	st.ids = s.IDs
	for i := range s.Orders {
		o := s.Orders[i]
		st.orders[o.ID] = &o
	}
	for _, b := range s.Execs {
		var hdr struct {
			ID uint64 `json:"id"`
		}
		if json.Unmarshal(b, &hdr) == nil {
			st.execs[hdr.ID] = b
		}
	}
	for i := range s.Positions {
		p := s.Positions[i]
		st.posns[p.Key()] = &p
	}
	return st
}

func (st *state) snapshot() *snapshot.Snapshot {
	s := &snapshot.Snapshot{Seq: st.seq, IDs: st.ids}
	for _, o := range st.orders {
		s.Orders = append(s.Orders, *o)
	}
	sort.Slice(s.Orders, func(i, j int) bool { return s.Orders[i].ID < s.Orders[j].ID })
	for _, b := range st.execs {
		s.Execs = append(s.Execs, b)
	}
	for _, p := range st.posns {
		s.Positions = append(s.Positions, *p)
	}
	return s
}

// apply folds one group member into the state.
func (st *state) apply(r *Record) error {
	switch r.Type {
	case RecordOrder:
		o := &orderbook.Order{}
		if err := json.Unmarshal(r.Data, o); err != nil {
			return err
		}
		st.orders[o.ID] = o

	case RecordUpdate:
		var u updateEntry
		if err := json.Unmarshal(r.Data, &u); err != nil {
			return err
		}
		o, ok := st.orders[u.ID]
		if !ok {
			return fmt.Errorf("update of unknown order %d", u.ID)
		}
		o.Rev, o.Status, o.Resd, o.Exec, o.Lots, o.Modified = u.Rev, u.Status, u.Resd, u.Exec, u.Lots, u.Modified

	case RecordExec:
		e := &account.Exec{}
		if err := json.Unmarshal(r.Data, e); err != nil {
			return err
		}
		st.execs[e.ID] = r.Data
		if e.LastLots != 0 {
			k := account.PositionKey(e.Account, e.Contract, e.SettlDay)
			p, ok := st.posns[k]
			if !ok {
				p = &account.Position{Account: e.Account, Contract: e.Contract, SettlDay: e.SettlDay}
				st.posns[k] = p
			}
			p.ApplyExec(e)
		}

	case RecordArchiveOrder:
		var a archiveEntry
		if err := json.Unmarshal(r.Data, &a); err != nil {
			return err
		}
		delete(st.orders, a.ID)

	case RecordArchiveTrade:
		var a archiveEntry
		if err := json.Unmarshal(r.Data, &a); err != nil {
			return err
		}
		delete(st.execs, a.ID)

	case RecordIDs:
		var e idsEntry
		if err := json.Unmarshal(r.Data, &e); err != nil {
			return err
		}
		if e.Hi > st.ids {
			st.ids = e.Hi
		}

	default:
		return fmt.Errorf("unexpected record type %s", r.Type)
	}
	return nil
}

// ──────────────────────────────────────────────────────────
// Model reads
// ──────────────────────────────────────────────────────────

func (st *state) readOrders() []*orderbook.Order {
	out := make([]*orderbook.Order, 0, len(st.orders))
	for _, o := range st.orders {
		c := *o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *state) readTrades() ([]*account.Exec, error) {
	out := make([]*account.Exec, 0, len(st.execs))
	for id, b := range st.execs {
		e := &account.Exec{}
		if err := json.Unmarshal(b, e); err != nil {
			return nil, fmt.Errorf("decode exec %d: %w", id, err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *state) readPositions() []*account.Position {
	out := make([]*account.Position, 0, len(st.posns))
	for _, p := range st.posns {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

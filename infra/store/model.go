package store

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
)

// ReadOrders returns every unarchived order in id order.
func (s *Store) ReadOrders() ([]*orderbook.Order, error) {
	var out []*orderbook.Order
	err := s.scan(prefixOrder, func(val []byte) error {
		rec := orderRecord{Order: &orderbook.Order{}}
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.Archived == 0 {
			out = append(out, rec.Order)
		}
		return nil
	})
	return out, err
}

// ReadTrades returns every unarchived execution in id order.
// Records carry no references; the loader retains them.
func (s *Store) ReadTrades() ([]*account.Exec, error) {
	var out []*account.Exec
	err := s.scan(prefixExec, func(val []byte) error {
		rec := execRecord{Exec: &account.Exec{}}
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.Archived == 0 {
			out = append(out, rec.Exec)
		}
		return nil
	})
	return out, err
}

// ReadPositions returns every position. Archiving a trade never changes a
// position.
func (s *Store) ReadPositions() ([]*account.Position, error) {
	var out []*account.Position
	err := s.scan(prefixPosn, func(val []byte) error {
		p := &account.Position{}
		if err := json.Unmarshal(val, p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *Store) scan(prefix []byte, fn func(val []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
	}
	return iter.Error()
}

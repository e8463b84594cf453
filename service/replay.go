package service

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sauravnith/swirly/domain/orderbook"
)

/*
Load rebuilds in-memory state from a Model.

IMPORTANT:
- This MUST run before accepting commands
- Orders are replayed into books in id order so that time priority within
  each level matches the order of placement
*/
func (x *Exchange) Load(m Model) error {
	contracts, err := m.ReadContracts()
	if err != nil {
		return fmt.Errorf("read contracts: %w", err)
	}
	for _, c := range contracts {
		x.contracts.Insert(int64(c.ID), c)
	}

	traders, err := m.ReadTraders()
	if err != nil {
		return fmt.Errorf("read traders: %w", err)
	}
	for _, t := range traders {
		x.traders.Insert(int64(t.ID), t)
	}

	accounts, err := m.ReadAccounts()
	if err != nil {
		return fmt.Errorf("read accounts: %w", err)
	}
	for _, a := range accounts {
		x.accounts.Insert(int64(a.ID), a)
	}

	orders, err := m.ReadOrders()
	if err != nil {
		return fmt.Errorf("read orders: %w", err)
	}
	if err := x.replayOrders(orders); err != nil {
		return err
	}

	trades, err := m.ReadTrades()
	if err != nil {
		return fmt.Errorf("read trades: %w", err)
	}
	for _, e := range trades {
		trader := x.Trader(e.Trader)
		if trader == nil {
			return fmt.Errorf("trade %d: no such trader '%d'", e.ID, e.Trader)
		}
		trader.InsertTrade(e.Retain())
	}

	posns, err := m.ReadPositions()
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}
	for _, p := range posns {
		acc := x.Account(p.Account)
		if acc == nil {
			return fmt.Errorf("position %d: no such account '%d'", p.Key(), p.Account)
		}
		acc.InsertPosition(p)
	}

	x.log.Info("model_loaded",
		zap.Int("contracts", len(contracts)),
		zap.Int("traders", len(traders)),
		zap.Int("accounts", len(accounts)),
		zap.Int("orders", len(orders)),
		zap.Int("trades", len(trades)),
		zap.Int("positions", len(posns)),
		zap.Int("books", x.books.Len()),
	)
	return nil
}

// replayOrders indexes orders by trader and rests the live ones.
func (x *Exchange) replayOrders(orders []*orderbook.Order) error {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	for _, o := range orders {
		trader := x.Trader(o.Trader)
		if trader == nil {
			return fmt.Errorf("order %d: no such trader '%d'", o.ID, o.Trader)
		}
		contr := x.Contract(o.Contract)
		if contr == nil {
			return fmt.Errorf("order %d: no such contract '%d'", o.ID, o.Contract)
		}
		trader.InsertOrder(o)
		if !o.Done() {
			x.lazyBook(contr, o.SettlDay).InsertOrder(o)
		}
	}
	return nil
}

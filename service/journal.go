package service

import (
	"errors"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/instrument"
	"github.com/sauravnith/swirly/domain/orderbook"
)

// Journal is the durable store the Exchange commits to before changing any
// in-memory state. Writes between Begin and Commit must become visible
// atomically, and Rollback must discard them.
//
// Commit is not expected to fail. When it does the Exchange halts.
type Journal interface {
	AllocID() (uint64, error)

	Begin() error
	InsertOrder(o *orderbook.Order) error
	UpdateOrder(id uint64, rev int32, status orderbook.Status, resd, exec, lots, now int64) error
	InsertExec(e *account.Exec) error
	ArchiveOrder(id uint64, now int64) error
	ArchiveTrade(id uint64, now int64) error
	Commit() error
	Rollback() error
}

// RefReader supplies reference data at startup.
type RefReader interface {
	ReadContracts() ([]*instrument.Contract, error)
	ReadTraders() ([]*account.Trader, error)
	ReadAccounts() ([]*account.Account, error)
}

// StateReader supplies the persisted, unarchived trading state at startup.
type StateReader interface {
	ReadOrders() ([]*orderbook.Order, error)
	ReadTrades() ([]*account.Exec, error)
	ReadPositions() ([]*account.Position, error)
}

// Model is everything Load needs to rebuild an Exchange.
type Model interface {
	RefReader
	StateReader
}

// Sink is told about executions and book changes once they are committed
// and applied. Sinks must not retain the records they are given; errors
// are logged and never undo the commit.
type Sink interface {
	OnExec(e *account.Exec) error
	OnView(v *orderbook.View) error
}

type nopSink struct{}

func (nopSink) OnExec(*account.Exec) error { return nil }
func (nopSink) OnView(*orderbook.View) error { return nil }

// Sinks fans out to every sink in order and joins their errors.
type Sinks []Sink

func (s Sinks) OnExec(e *account.Exec) error {
	var errs []error
	for _, sink := range s {
		if err := sink.OnExec(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s Sinks) OnView(v *orderbook.View) error {
	var errs []error
	for _, sink := range s {
		if err := sink.OnView(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/instrument"
	"github.com/sauravnith/swirly/domain/matching"
	"github.com/sauravnith/swirly/domain/orderbook"
	"github.com/sauravnith/swirly/domain/rbtree"
)

/*
Exchange is the ONLY write entry point into the system.

Every command follows the same shape:
- validate against in-memory state (no journal calls on rejection)
- journal begin, writes, commit (rollback on any write failure)
- only then apply to books, traders and accounts
- notify the sink

Exchange is single-writer. Callers serialize access.
*/
type Exchange struct {
	journal Journal
	engine  *matching.Engine
	execs   *account.ExecPool
	sink    Sink
	log     *zap.Logger
	clock   func() time.Time

	contracts *rbtree.Tree[*instrument.Contract]
	traders   *rbtree.Tree[*account.Trader]
	accounts  *rbtree.Tree[*account.Account]
	books     *rbtree.Tree[*orderbook.Book]

	halted error
}

// NewExchange wires all dependencies. sink may be nil.
func NewExchange(journal Journal, sink Sink, log *zap.Logger) *Exchange {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	execs := account.NewExecPool()
	return &Exchange{
		journal:   journal,
		engine:    matching.NewEngine(journal, execs),
		execs:     execs,
		sink:      sink,
		log:       log,
		clock:     time.Now,
		contracts: rbtree.New[*instrument.Contract](),
		traders:   rbtree.New[*account.Trader](),
		accounts:  rbtree.New[*account.Account](),
		books:     rbtree.New[*orderbook.Book](),
	}
}

// PlaceRequest describes a new limit order.
type PlaceRequest struct {
	Trader   uint64
	Account  uint64
	Contract uint32
	SettlDay int32
	Ref      string
	Action   orderbook.Action
	Ticks    int64
	Lots     int64
	MinLots  int64
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Place matches a new order against the book, journals the order and every
// resulting execution, then applies the fills and rests any remainder.
func (x *Exchange) Place(req PlaceRequest) (*orderbook.Order, *matching.Transaction, error) {
	if err := x.check(); err != nil {
		return nil, nil, err
	}
	trader := x.Trader(req.Trader)
	if trader == nil {
		return nil, nil, invalidf("no such trader '%d'", req.Trader)
	}
	acc := x.Account(req.Account)
	if acc == nil {
		return nil, nil, invalidf("no such account '%d'", req.Account)
	}
	contr := x.Contract(req.Contract)
	if contr == nil {
		return nil, nil, invalidf("no such contract '%d'", req.Contract)
	}
	if !instrument.ValidSettlDay(req.SettlDay) {
		return nil, nil, invalidf("invalid settl day '%d'", req.SettlDay)
	}
	if req.Action != orderbook.Buy && req.Action != orderbook.Sell {
		return nil, nil, invalidf("invalid action '%d'", req.Action)
	}
	if req.Ticks <= 0 {
		return nil, nil, invalidf("invalid ticks '%d'", req.Ticks)
	}
	if !contr.ValidLots(req.Lots) {
		return nil, nil, invalidf("invalid lots '%d'", req.Lots)
	}
	if req.MinLots < 0 || req.MinLots > req.Lots {
		return nil, nil, invalidf("invalid min lots '%d'", req.MinLots)
	}
	if req.Ref != "" && trader.RefInUse(req.Ref) {
		return nil, nil, invalidf("duplicate ref '%.64s'", req.Ref)
	}

	id, err := x.journal.AllocID()
	if err != nil {
		return nil, nil, x.journalErr("alloc_id", err)
	}
	now := x.now()
	order := &orderbook.Order{
		ID:       id,
		Trader:   trader.ID,
		Account:  acc.ID,
		Contract: contr.ID,
		SettlDay: req.SettlDay,
		Ref:      req.Ref,
		Status:   orderbook.Placed,
		Action:   req.Action,
		Ticks:    req.Ticks,
		Lots:     req.Lots,
		Resd:     req.Lots,
		MinLots:  req.MinLots,
		Rev:      1,
		Created:  now,
		Modified: now,
	}
	book, fresh := x.findBook(contr, req.SettlDay)

	if err := x.journal.Begin(); err != nil {
		return nil, nil, x.journalErr("begin", err)
	}
	trans, err := x.journalPlace(book, order, now)
	if err != nil {
		return nil, nil, x.rollback("place", err)
	}
	if err := x.commit(); err != nil {
		x.engine.Discard(trans)
		return nil, nil, err
	}

	if fresh {
		x.books.Insert(book.Key(), book)
	}
	x.applyPlace(book, trader, order, trans, now)
	x.notify(book, trans.Execs())
	return order, trans, nil
}

func (x *Exchange) ReviseByID(traderID, id uint64, lots int64) (*orderbook.Order, error) {
	trader, err := x.commandTrader(traderID)
	if err != nil {
		return nil, err
	}
	order := trader.FindOrder(id)
	if order == nil {
		return nil, invalidf("no such order '%d'", id)
	}
	return x.revise(order, lots)
}

func (x *Exchange) ReviseByRef(traderID uint64, ref string, lots int64) (*orderbook.Order, error) {
	trader, err := x.commandTrader(traderID)
	if err != nil {
		return nil, err
	}
	order := trader.FindOrderByRef(ref)
	if order == nil {
		return nil, invalidf("no such order '%.64s'", ref)
	}
	return x.revise(order, lots)
}

func (x *Exchange) CancelByID(traderID, id uint64) (*orderbook.Order, error) {
	trader, err := x.commandTrader(traderID)
	if err != nil {
		return nil, err
	}
	order := trader.FindOrder(id)
	if order == nil {
		return nil, invalidf("no such order '%d'", id)
	}
	return x.cancel(order)
}

func (x *Exchange) CancelByRef(traderID uint64, ref string) (*orderbook.Order, error) {
	trader, err := x.commandTrader(traderID)
	if err != nil {
		return nil, err
	}
	order := trader.FindOrderByRef(ref)
	if order == nil {
		return nil, invalidf("no such order '%.64s'", ref)
	}
	return x.cancel(order)
}

// ArchiveOrder removes a done order from its trader.
func (x *Exchange) ArchiveOrder(traderID, id uint64) error {
	trader, err := x.commandTrader(traderID)
	if err != nil {
		return err
	}
	order := trader.FindOrder(id)
	if order == nil {
		return invalidf("no such order '%d'", id)
	}
	if !order.Done() {
		return invalidf("order not done '%d'", id)
	}

	if err := x.journal.Begin(); err != nil {
		return x.journalErr("begin", err)
	}
	if err := x.journal.ArchiveOrder(id, x.now()); err != nil {
		return x.rollback("archive_order", err)
	}
	if err := x.commit(); err != nil {
		return err
	}
	trader.RemoveOrder(order)
	return nil
}

// ArchiveTrade removes an execution from its trader's history.
func (x *Exchange) ArchiveTrade(traderID, id uint64) error {
	trader, err := x.commandTrader(traderID)
	if err != nil {
		return err
	}
	if trader.FindTrade(id) == nil {
		return invalidf("no such trade '%d'", id)
	}

	if err := x.journal.Begin(); err != nil {
		return x.journalErr("begin", err)
	}
	if err := x.journal.ArchiveTrade(id, x.now()); err != nil {
		return x.rollback("archive_trade", err)
	}
	if err := x.commit(); err != nil {
		return err
	}
	x.execs.Release(trader.RemoveTrade(id))
	return nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (x *Exchange) Contract(id uint32) *instrument.Contract {
	if n := x.contracts.Find(int64(id)); n != nil {
		return n.Value
	}
	return nil
}

func (x *Exchange) Trader(id uint64) *account.Trader {
	if n := x.traders.Find(int64(id)); n != nil {
		return n.Value
	}
	return nil
}

func (x *Exchange) Account(id uint64) *account.Account {
	if n := x.accounts.Find(int64(id)); n != nil {
		return n.Value
	}
	return nil
}

// Book returns the book for the contract and settlement day, or nil if no
// order has referenced it yet.
func (x *Exchange) Book(cid uint32, settlDay int32) *orderbook.Book {
	if n := x.books.Find(instrument.BookKey(cid, settlDay)); n != nil {
		return n.Value
	}
	return nil
}

// View returns the top levels of a book. An unreferenced book yields an
// empty view.
func (x *Exchange) View(cid uint32, settlDay int32, depth int) (*orderbook.View, error) {
	contr := x.Contract(cid)
	if contr == nil {
		return nil, invalidf("no such contract '%d'", cid)
	}
	if !instrument.ValidSettlDay(settlDay) {
		return nil, invalidf("invalid settl day '%d'", settlDay)
	}
	if b := x.Book(cid, settlDay); b != nil {
		return b.View(depth), nil
	}
	return orderbook.NewBook(contr, settlDay).View(depth), nil
}

// EachBook visits books in key order until fn returns false.
func (x *Exchange) EachBook(fn func(*orderbook.Book) bool) {
	x.books.Ascend(func(n *rbtree.Node[*orderbook.Book]) bool {
		return fn(n.Value)
	})
}

// Halted returns the commit failure that stopped the exchange, or nil.
func (x *Exchange) Halted() error { return x.halted }

//
// ──────────────────────────────────────────────────────────
// Commit protocol
// ──────────────────────────────────────────────────────────
//

func (x *Exchange) journalPlace(book *orderbook.Book, order *orderbook.Order, now int64) (*matching.Transaction, error) {
	if err := x.journal.InsertOrder(order); err != nil {
		return nil, err
	}
	trans, err := x.engine.Match(book, order, now)
	if err != nil {
		return nil, err
	}
	x.bindPositions(trans)
	if err := x.journalMatches(trans, now); err != nil {
		x.engine.Discard(trans)
		return nil, err
	}
	return trans, nil
}

func (x *Exchange) journalMatches(trans *matching.Transaction, now int64) error {
	taker := trans.Taker
	for i, m := range trans.Matches {
		te, me, maker := m.TakerExec, m.MakerExec, m.MakerOrder
		if err := x.journal.UpdateOrder(taker.ID, taker.Rev+int32(i+1), te.Status, te.Resd, te.Exec, taker.Lots, now); err != nil {
			return err
		}
		if err := x.journal.InsertExec(te); err != nil {
			return err
		}
		if err := x.journal.UpdateOrder(maker.ID, maker.Rev+1, me.Status, me.Resd, me.Exec, maker.Lots, now); err != nil {
			return err
		}
		if err := x.journal.InsertExec(me); err != nil {
			return err
		}
	}
	return nil
}

// applyPlace runs after commit and cannot fail.
func (x *Exchange) applyPlace(
	book *orderbook.Book,
	trader *account.Trader,
	order *orderbook.Order,
	trans *matching.Transaction,
	now int64,
) {
	if n := trans.Count(); n > 0 {
		last := trans.Last()
		order.Rev += int32(n)
		order.Resd -= trans.Taken
		order.Exec += trans.Taken
		order.LastTicks = last.Ticks
		order.LastLots = last.Lots
		order.Modified = now
		if order.Done() {
			order.Status = orderbook.Filled
		} else {
			order.Status = orderbook.Partial
		}
	}
	trader.InsertOrder(order)

	for _, m := range trans.Matches {
		maker := m.MakerOrder
		book.TakeOrder(maker, m.Lots, now)

		trader.InsertTrade(m.TakerExec)
		if mt := x.Trader(maker.Trader); mt != nil {
			mt.InsertTrade(m.MakerExec)
		} else {
			x.log.Warn("maker_trader_missing", zap.Uint64("order_id", maker.ID), zap.Uint64("trader", maker.Trader))
		}

		x.bookPosition(trans.TakerPosn, m.TakerExec)
		x.bookPosition(m.MakerPosn, m.MakerExec)
	}

	if !order.Done() {
		book.InsertOrder(order)
	}
}

// bindPositions attaches the taker and maker positions to a transaction.
// Positions that do not exist yet are created detached and indexed on apply,
// so a discarded transaction leaves no trace in the accounts.
func (x *Exchange) bindPositions(trans *matching.Transaction) {
	if trans.Count() == 0 {
		return
	}
	fresh := make(map[int64]*account.Position)
	lookup := func(aid uint64, cid uint32, settlDay int32) *account.Position {
		acc := x.Account(aid)
		if acc == nil {
			return nil
		}
		if p := acc.FindPosition(cid, settlDay); p != nil {
			return p
		}
		key := account.PositionKey(aid, cid, settlDay)
		p, ok := fresh[key]
		if !ok {
			p = &account.Position{Account: aid, Contract: cid, SettlDay: settlDay}
			fresh[key] = p
		}
		return p
	}

	taker := trans.Taker
	trans.TakerPosn = lookup(taker.Account, taker.Contract, taker.SettlDay)
	for _, m := range trans.Matches {
		maker := m.MakerOrder
		m.MakerPosn = lookup(maker.Account, maker.Contract, maker.SettlDay)
	}
}

func (x *Exchange) bookPosition(p *account.Position, e *account.Exec) {
	if p == nil {
		x.log.Warn("position_account_missing", zap.Uint64("exec_id", e.ID), zap.Uint64("account", e.Account))
		return
	}
	x.Account(p.Account).InsertPosition(p).ApplyExec(e)
}

func (x *Exchange) revise(order *orderbook.Order, lots int64) (*orderbook.Order, error) {
	if order.Done() {
		return nil, invalidf("order complete '%d'", order.ID)
	}
	if lots <= 0 || lots < order.MinLots || lots < order.Exec || lots > order.Lots {
		return nil, invalidf("invalid lots '%d' for order '%d'", lots, order.ID)
	}
	book := x.Book(order.Contract, order.SettlDay)
	if book == nil {
		return nil, fmt.Errorf("order '%d' has no book", order.ID)
	}

	now := x.now()
	resd := order.Resd - (order.Lots - lots)
	if err := x.journal.Begin(); err != nil {
		return nil, x.journalErr("begin", err)
	}
	if err := x.journal.UpdateOrder(order.ID, order.Rev+1, orderbook.Revised, resd, order.Exec, lots, now); err != nil {
		return nil, x.rollback("revise", err)
	}
	if err := x.commit(); err != nil {
		return nil, err
	}

	book.ReviseOrder(order, lots, now)
	x.notify(book, nil)
	return order, nil
}

func (x *Exchange) cancel(order *orderbook.Order) (*orderbook.Order, error) {
	if order.Done() {
		return nil, invalidf("order complete '%d'", order.ID)
	}
	book := x.Book(order.Contract, order.SettlDay)
	if book == nil {
		return nil, fmt.Errorf("order '%d' has no book", order.ID)
	}

	now := x.now()
	if err := x.journal.Begin(); err != nil {
		return nil, x.journalErr("begin", err)
	}
	if err := x.journal.UpdateOrder(order.ID, order.Rev+1, orderbook.Cancelled, 0, order.Exec, order.Lots, now); err != nil {
		return nil, x.rollback("cancel", err)
	}
	if err := x.commit(); err != nil {
		return nil, err
	}

	book.CancelOrder(order, now)
	x.notify(book, nil)
	return order, nil
}

func (x *Exchange) commit() error {
	if err := x.journal.Commit(); err != nil {
		x.halted = err
		x.log.Error("commit_failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrHalted, err)
	}
	return nil
}

func (x *Exchange) rollback(op string, err error) error {
	if rbErr := x.journal.Rollback(); rbErr != nil {
		err = errors.Join(err, rbErr)
	}
	return x.journalErr(op, err)
}

func (x *Exchange) journalErr(op string, err error) error {
	x.log.Warn("journal_failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrJournal, op, err)
}

func (x *Exchange) notify(book *orderbook.Book, execs []*account.Exec) {
	for _, e := range execs {
		if err := x.sink.OnExec(e); err != nil {
			x.log.Warn("sink_exec_failed", zap.Uint64("exec_id", e.ID), zap.Error(err))
		}
	}
	if err := x.sink.OnView(book.View(orderbook.DefaultViewDepth)); err != nil {
		x.log.Warn("sink_view_failed", zap.Int64("book", book.Key()), zap.Error(err))
	}
}

//
// ──────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────
//

func (x *Exchange) check() error {
	if x.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, x.halted)
	}
	return nil
}

func (x *Exchange) commandTrader(id uint64) (*account.Trader, error) {
	if err := x.check(); err != nil {
		return nil, err
	}
	trader := x.Trader(id)
	if trader == nil {
		return nil, invalidf("no such trader '%d'", id)
	}
	return trader, nil
}

// findBook returns the indexed book, or a new detached one that the caller
// indexes once its order is committed.
func (x *Exchange) findBook(c *instrument.Contract, settlDay int32) (*orderbook.Book, bool) {
	if b := x.Book(c.ID, settlDay); b != nil {
		return b, false
	}
	return orderbook.NewBook(c, settlDay), true
}

func (x *Exchange) lazyBook(c *instrument.Contract, settlDay int32) *orderbook.Book {
	n, created := x.books.Insert(instrument.BookKey(c.ID, settlDay), nil)
	if created {
		n.Value = orderbook.NewBook(c, settlDay)
	}
	return n.Value
}

func (x *Exchange) now() int64 { return x.clock().UnixMilli() }

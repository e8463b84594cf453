package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
	"github.com/sauravnith/swirly/infra/sequence"
)

var (
	ErrNoTransaction = errors.New("no open transaction")
	ErrInTransaction = errors.New("transaction already open")
)

// orderRecord is the stored form of an order. Archived is the archive time,
// zero while the order is live.
type orderRecord struct {
	*orderbook.Order
	Archived int64 `json:"archived,omitempty"`
}

type execRecord struct {
	*account.Exec
	Archived int64 `json:"archived,omitempty"`
}

type Store struct {
	db    *pebble.DB
	ids   *sequence.Blocks
	batch *pebble.Batch
	log   *zap.Logger
}

// Open opens or creates the database in dir. Ids are reserved idBlock at
// a time.
func Open(dir string, idBlock uint64, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", dir, err)
	}
	s := &Store{db: db, log: log}

	hi, err := s.reserved()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ids = sequence.NewBlocks(hi, idBlock, s)
	log.Info("store_opened", zap.String("dir", dir), zap.Uint64("reserved_ids", hi))
	return s, nil
}

func (s *Store) Close() error {
	if s.batch != nil {
		s.batch.Close()
		s.batch = nil
	}
	return s.db.Close()
}

// ──────────────────────────────────────────────────────────
// Ids
// ──────────────────────────────────────────────────────────

func (s *Store) AllocID() (uint64, error) { return s.ids.AllocID() }

// Reserve persists the id high-water mark outside any open transaction.
func (s *Store) Reserve(hi uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], hi)
	if err := s.db.Set(keyIDs, buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("save id mark: %w", err)
	}
	return nil
}

func (s *Store) reserved() (uint64, error) {
	val, closer, err := s.db.Get(keyIDs)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get id mark: %w", err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("invalid id mark length %d", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// ──────────────────────────────────────────────────────────
// Journal
// ──────────────────────────────────────────────────────────

func (s *Store) Begin() error {
	if s.batch != nil {
		return ErrInTransaction
	}
	s.batch = s.db.NewIndexedBatch()
	return nil
}

func (s *Store) InsertOrder(o *orderbook.Order) error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	return s.put(orderKey(o.ID), orderRecord{Order: o})
}

func (s *Store) UpdateOrder(id uint64, rev int32, status orderbook.Status, resd, exec, lots, now int64) error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	rec := orderRecord{Order: &orderbook.Order{}}
	if err := s.get(orderKey(id), &rec); err != nil {
		return fmt.Errorf("update order %d: %w", id, err)
	}
	rec.Rev = rev
	rec.Status = status
	rec.Resd = resd
	rec.Exec = exec
	rec.Lots = lots
	rec.Modified = now
	return s.put(orderKey(id), rec)
}

// InsertExec stores e and folds its fill into the owning position.
func (s *Store) InsertExec(e *account.Exec) error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	if err := s.put(execKey(e.ID), execRecord{Exec: e}); err != nil {
		return err
	}
	if e.LastLots == 0 {
		return nil
	}

	key := posnKey(account.PositionKey(e.Account, e.Contract, e.SettlDay))
	posn := account.Position{Account: e.Account, Contract: e.Contract, SettlDay: e.SettlDay}
	if err := s.get(key, &posn); err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("load position: %w", err)
	}
	posn.ApplyExec(e)
	return s.put(key, &posn)
}

func (s *Store) ArchiveOrder(id uint64, now int64) error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	rec := orderRecord{Order: &orderbook.Order{}}
	if err := s.get(orderKey(id), &rec); err != nil {
		return fmt.Errorf("archive order %d: %w", id, err)
	}
	rec.Archived = now
	return s.put(orderKey(id), rec)
}

func (s *Store) ArchiveTrade(id uint64, now int64) error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	rec := execRecord{Exec: &account.Exec{}}
	if err := s.get(execKey(id), &rec); err != nil {
		return fmt.Errorf("archive trade %d: %w", id, err)
	}
	rec.Archived = now
	return s.put(execKey(id), rec)
}

func (s *Store) Commit() error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	b := s.batch
	s.batch = nil
	defer b.Close()
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Store) Rollback() error {
	if s.batch == nil {
		return nil
	}
	err := s.batch.Close()
	s.batch = nil
	return err
}

func (s *Store) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.batch.Set(key, data, nil); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// get reads through the open batch so that earlier writes in the same
// transaction are visible.
func (s *Store) get(key []byte, v any) error {
	data, closer, err := s.batch.Get(key)
	if err != nil {
		return err
	}
	defer closer.Close()
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
	"github.com/sauravnith/swirly/infra/sequence"
	"github.com/sauravnith/swirly/snapshot"
)

const checkpointFile = "checkpoint.bin"

var (
	ErrNoTransaction = errors.New("wal: no open transaction")
	ErrInTransaction = errors.New("wal: transaction already open")
)

type Config struct {
	Dir         string
	SegmentSize int64
	IDBlock     uint64
}

// Journal is a segment-file journal. Writes between Begin and Commit are
// buffered and reach disk as one group ending in a commit frame, followed
// by an fsync.
type Journal struct {
	dir     string
	segSize int64
	current *segment

	seq     uint64
	ids     *sequence.Blocks
	open    bool
	pending []*Record
	buf     []byte

	st  *state
	log *zap.Logger
	now func() time.Time
}

// Open loads the checkpoint if any, replays the segments after it and
// starts a fresh segment for new writes.
func Open(cfg Config, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	st := newState()
	snap, err := snapshot.Load(filepath.Join(cfg.Dir, checkpointFile))
	if err != nil {
		return nil, err
	}
	if snap != nil {
		st = stateFromSnapshot(snap)
	}

	last, err := replay(cfg.Dir, st, log)
	if err != nil {
		return nil, err
	}

	seg, err := openSegment(cfg.Dir, last+1)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		dir:     cfg.Dir,
		segSize: cfg.SegmentSize,
		current: seg,
		seq:     st.seq,
		st:      st,
		log:     log,
		now:     time.Now,
	}
	j.ids = sequence.NewBlocks(st.ids, cfg.IDBlock, j)

	log.Info("wal_opened",
		zap.String("dir", cfg.Dir),
		zap.Uint64("seq", st.seq),
		zap.Int("orders", len(st.orders)),
		zap.Int("execs", len(st.execs)),
		zap.Int("segment", seg.index),
	)
	return j, nil
}

func (j *Journal) Close() error {
	return j.current.close()
}

// Seq returns the sequence of the last durable record.
func (j *Journal) Seq() uint64 { return j.seq }

// ──────────────────────────────────────────────────────────
// Ids
// ──────────────────────────────────────────────────────────

func (j *Journal) AllocID() (uint64, error) { return j.ids.AllocID() }

// Reserve writes an id mark as its own durable record. It never joins the
// open group.
func (j *Journal) Reserve(hi uint64) error {
	data, err := json.Marshal(idsEntry{Hi: hi})
	if err != nil {
		return err
	}
	rec := &Record{Type: RecordIDs, Seq: j.seq + 1, Time: j.now().UnixNano(), Data: data}
	if err := j.write(appendFrame(nil, rec)); err != nil {
		return fmt.Errorf("reserve ids: %w", err)
	}
	j.seq = rec.Seq
	if err := j.st.apply(rec); err != nil {
		return err
	}
	j.st.seq = rec.Seq
	return nil
}

// ──────────────────────────────────────────────────────────
// Journal
// ──────────────────────────────────────────────────────────

func (j *Journal) Begin() error {
	if j.open {
		return ErrInTransaction
	}
	j.open = true
	j.pending = j.pending[:0]
	return nil
}

func (j *Journal) InsertOrder(o *orderbook.Order) error {
	return j.add(RecordOrder, o)
}

func (j *Journal) UpdateOrder(id uint64, rev int32, status orderbook.Status, resd, exec, lots, now int64) error {
	return j.add(RecordUpdate, updateEntry{
		ID:       id,
		Rev:      rev,
		Status:   status,
		Resd:     resd,
		Exec:     exec,
		Lots:     lots,
		Modified: now,
	})
}

func (j *Journal) InsertExec(e *account.Exec) error {
	return j.add(RecordExec, e)
}

func (j *Journal) ArchiveOrder(id uint64, now int64) error {
	return j.add(RecordArchiveOrder, archiveEntry{ID: id, Time: now})
}

func (j *Journal) ArchiveTrade(id uint64, now int64) error {
	return j.add(RecordArchiveTrade, archiveEntry{ID: id, Time: now})
}

// Commit frames the group, writes it with a trailing commit record and
// syncs. The committed image is updated only after the sync succeeds.
func (j *Journal) Commit() error {
	if !j.open {
		return ErrNoTransaction
	}
	j.open = false

	ts := j.now().UnixNano()
	seq := j.seq
	j.buf = j.buf[:0]
	for _, r := range j.pending {
		seq++
		r.Seq, r.Time = seq, ts
		j.buf = appendFrame(j.buf, r)
	}
	seq++
	j.buf = appendFrame(j.buf, &Record{Type: RecordCommit, Seq: seq, Time: ts})

	if err := j.write(j.buf); err != nil {
		return fmt.Errorf("commit group: %w", err)
	}
	j.seq = seq

	for _, r := range j.pending {
		if err := j.st.apply(r); err != nil {
			return fmt.Errorf("apply seq %d: %w", r.Seq, err)
		}
	}
	j.st.seq = seq
	j.pending = j.pending[:0]
	return nil
}

func (j *Journal) Rollback() error {
	j.open = false
	j.pending = j.pending[:0]
	return nil
}

func (j *Journal) add(t RecordType, v any) error {
	if !j.open {
		return ErrNoTransaction
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t, err)
	}
	j.pending = append(j.pending, &Record{Type: t, Data: data})
	return nil
}

func (j *Journal) write(b []byte) error {
	if err := j.current.append(b); err != nil {
		return err
	}
	if j.segSize > 0 && j.current.offset >= j.segSize {
		return j.rotate()
	}
	return nil
}

func (j *Journal) rotate() error {
	next := j.current.index + 1
	if err := j.current.close(); err != nil {
		return err
	}
	seg, err := openSegment(j.dir, next)
	if err != nil {
		return err
	}
	j.current = seg
	return nil
}

// ──────────────────────────────────────────────────────────
// Model
// ──────────────────────────────────────────────────────────

func (j *Journal) ReadOrders() ([]*orderbook.Order, error) { return j.st.readOrders(), nil }

func (j *Journal) ReadTrades() ([]*account.Exec, error) { return j.st.readTrades() }

func (j *Journal) ReadPositions() ([]*account.Position, error) { return j.st.readPositions(), nil }

package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const headerSize = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, headerSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[headerSize:], r.Payload)
	return buf
}

// decodeRecord copies the payload out of b, which pebble may reuse.
func decodeRecord(b []byte) (Record, error) {
	if len(b) < headerSize {
		return Record{}, errors.New("invalid outbox record length")
	}
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     bytes.Clone(b[headerSize:]),
	}, nil
}

// -------------------- Outbox --------------------

// Outbox holds encoded exec events until the broadcaster has delivered
// them.
type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", dir, err)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// PutNew inserts a new entry.
func (o *Outbox) PutNew(id uint64, payload []byte) error {
	rec := Record{State: StateNew, Payload: payload}
	return o.db.Set(keyFor(id), encodeRecord(rec), pebble.Sync)
}

// UpdateState updates state after send / ack / failure. The payload is
// kept.
func (o *Outbox) UpdateState(id uint64, state State, retries uint32) error {
	rec, err := o.Get(id)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(id), encodeRecord(rec), pebble.Sync)
}

// Delete removes ACKED records (cleanup).
func (o *Outbox) Delete(id uint64) error {
	return o.db.Delete(keyFor(id), pebble.Sync)
}

// Get returns the current record for an exec.
func (o *Outbox) Get(id uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(id))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// -------------------- Scan --------------------

// ScanByState iterates all records in the given state in id order.
// This is used by the Broadcaster.
func (o *Outbox) ScanByState(
	state State,
	fn func(id uint64, rec Record) error,
) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("exec/"),
		UpperBound: []byte("exec/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}
		id, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(id, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

func keyFor(id uint64) []byte {
	return []byte(fmt.Sprintf("exec/%020d", id))
}

func parseKey(b []byte) (uint64, error) {
	return strconv.ParseUint(string(bytes.TrimPrefix(b, []byte("exec/"))), 10, 64)
}

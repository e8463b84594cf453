package outbox

import (
	"errors"
	"testing"

	"github.com/cockroachdb/pebble"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/service"
)

var _ service.Sink = (*Sink)(nil)

func openOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { o.Close() })
	return o
}

func TestStateTransitionsKeepPayload(t *testing.T) {
	o := openOutbox(t)
	if err := o.PutNew(7, []byte("event-7")); err != nil {
		t.Fatal(err)
	}
	if err := o.UpdateState(7, StateFailed, 2); err != nil {
		t.Fatal(err)
	}

	rec, err := o.Get(7)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != StateFailed || rec.Retries != 2 || rec.LastAttempt == 0 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if string(rec.Payload) != "event-7" {
		t.Fatalf("payload lost: %q", rec.Payload)
	}

	if err := o.Delete(7); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Get(7); !errors.Is(err, pebble.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestScanByState(t *testing.T) {
	o := openOutbox(t)
	for _, id := range []uint64{3, 1, 2, 10} {
		if err := o.PutNew(id, []byte{byte(id)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := o.UpdateState(2, StateAcked, 0); err != nil {
		t.Fatal(err)
	}

	var ids []uint64
	err := o.ScanByState(StateNew, func(id uint64, rec Record) error {
		if rec.Payload[0] != byte(id) {
			t.Fatalf("payload mismatch for %d", id)
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{1, 3, 10}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestSinkQueuesExecs(t *testing.T) {
	o := openOutbox(t)
	s := NewSink(o, func(e *account.Exec) ([]byte, error) {
		return []byte("encoded"), nil
	})
	if err := s.OnExec(&account.Exec{ID: 55}); err != nil {
		t.Fatal(err)
	}
	if err := s.OnView(nil); err != nil {
		t.Fatal(err)
	}
	rec, err := o.Get(55)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != StateNew || string(rec.Payload) != "encoded" {
		t.Fatalf("unexpected record %+v", rec)
	}

	boom := errors.New("encode failed")
	bad := NewSink(o, func(*account.Exec) ([]byte, error) { return nil, boom })
	if err := bad.OnExec(&account.Exec{ID: 56}); !errors.Is(err, boom) {
		t.Fatalf("expected encode error, got %v", err)
	}
}

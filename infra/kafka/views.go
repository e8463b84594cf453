package kafka

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/instrument"
	"github.com/sauravnith/swirly/domain/orderbook"
)

// Sender is satisfied by Producer.
type Sender interface {
	Send(ctx context.Context, key, value []byte) error
}

// ViewEncoder turns a view into an event payload.
type ViewEncoder func(*orderbook.View) ([]byte, error)

// ViewSink publishes book views keyed by book so that every update to one
// book lands in the same partition. Execs are left to the outbox.
type ViewSink struct {
	out     Sender
	enc     ViewEncoder
	timeout time.Duration
}

func NewViewSink(out Sender, enc ViewEncoder, timeout time.Duration) *ViewSink {
	return &ViewSink{out: out, enc: enc, timeout: timeout}
}

func (s *ViewSink) OnExec(*account.Exec) error { return nil }

func (s *ViewSink) OnView(v *orderbook.View) error {
	payload, err := s.enc(v)
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(instrument.BookKey(v.Contract, v.SettlDay)))

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.out.Send(ctx, key, payload)
}

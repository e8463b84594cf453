package outbox

import (
	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
)

// ExecEncoder turns an exec into an event payload.
type ExecEncoder func(*account.Exec) ([]byte, error)

// Sink records every exec in the outbox. Views are not queued.
type Sink struct {
	box *Outbox
	enc ExecEncoder
}

func NewSink(box *Outbox, enc ExecEncoder) *Sink {
	return &Sink{box: box, enc: enc}
}

func (s *Sink) OnExec(e *account.Exec) error {
	payload, err := s.enc(e)
	if err != nil {
		return err
	}
	return s.box.PutNew(e.ID, payload)
}

func (s *Sink) OnView(*orderbook.View) error { return nil }

package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/sauravnith/swirly/infra/outbox"
)

type Broadcaster struct {
	box        *outbox.Outbox
	producer   sarama.SyncProducer
	topic      string
	maxRetries uint32
	log        *zap.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	box *outbox.Outbox,
	brokers []string,
	topic string,
	maxRetries uint32,
	log *zap.Logger,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithProducer(box, producer, topic, maxRetries, log), nil
}

// NewWithProducer wraps an existing producer. The broadcaster owns it and
// closes it on Close.
func NewWithProducer(
	box *outbox.Outbox,
	producer sarama.SyncProducer,
	topic string,
	maxRetries uint32,
	log *zap.Logger,
) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		box:        box,
		producer:   producer,
		topic:      topic,
		maxRetries: maxRetries,
		log:        log,
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Start drains the outbox every interval until ctx is done. The returned
// channel closes once the loop has exited and no pass is in flight.
func (b *Broadcaster) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	b.log.Info("broadcaster_started", zap.String("topic", b.topic), zap.Duration("interval", interval))

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				if err := b.RunOnce(); err != nil {
					b.log.Warn("broadcaster_pass_failed", zap.Error(err))
				}
			}
		}
	}()
	return done
}

// ------------------------------------------------
// REPLAY LOGIC (CRITICAL)
// ------------------------------------------------

// RunOnce makes one delivery pass:
//  1. delete entries ACKED by the previous pass
//  2. resend SENT entries left by a crash, then FAILED, then NEW
//
// Delivery is at-least-once; consumers dedupe on the event id.
func (b *Broadcaster) RunOnce() error {
	err := b.box.ScanByState(outbox.StateAcked, func(id uint64, _ outbox.Record) error {
		return b.box.Delete(id)
	})
	if err != nil {
		return err
	}

	for _, state := range []outbox.State{outbox.StateSent, outbox.StateFailed, outbox.StateNew} {
		if err := b.box.ScanByState(state, b.deliver); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broadcaster) deliver(id uint64, rec outbox.Record) error {
	if rec.State == outbox.StateFailed && rec.Retries >= b.maxRetries {
		// Parked until an operator intervenes.
		return nil
	}

	// 1️⃣ Mark SENT (idempotent)
	if err := b.box.UpdateState(id, outbox.StateSent, rec.Retries); err != nil {
		return err
	}

	// 2️⃣ Publish to Kafka
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(id, 10)),
		Value: sarama.ByteEncoder(rec.Payload),
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		retries := rec.Retries + 1
		b.log.Warn("broadcast_failed",
			zap.Uint64("exec_id", id),
			zap.Uint32("retries", retries),
			zap.Error(err),
		)
		if retries >= b.maxRetries {
			b.log.Error("broadcast_parked", zap.Uint64("exec_id", id))
		}
		return b.box.UpdateState(id, outbox.StateFailed, retries)
	}

	// 3️⃣ Mark ACKED
	return b.box.UpdateState(id, outbox.StateAcked, rec.Retries)
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}

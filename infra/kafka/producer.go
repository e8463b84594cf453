package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	writer *kafka.Writer
}

// NewProducer returns a producer for topic. An async producer never
// blocks the caller; delivery failures are logged.
func NewProducer(brokers []string, topic string, async bool, log *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        async,
		BatchTimeout: 10 * time.Millisecond,
	}
	if async && log != nil {
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("kafka_delivery_failed", zap.String("topic", topic), zap.Int("messages", len(msgs)), zap.Error(err))
			}
		}
	}
	return &Producer{writer: w}
}

func (p *Producer) Send(
	ctx context.Context,
	key []byte,
	value []byte,
) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

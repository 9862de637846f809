package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jmehdipour/notifications-delivery/internal/model"
)

type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration // default 50ms
	WriteTimeout time.Duration // default 5s
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a thin wrapper around segmentio/kafka-go Writer that emits
// one event per delivery attempt, keyed by notification id.
type Publisher struct {
	w messageWriter
}

func NewPublisherFromConfig(c Config) *Publisher {
	bt := c.BatchTimeout
	if bt <= 0 {
		bt = 50 * time.Millisecond
	}
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 5 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           bt,
		WriteTimeout:           wt,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Publisher{w: w}
}

// Record publishes d.
func (p *Publisher) Record(ctx context.Context, d model.Delivery) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	key := d.NotificationID
	if key == "" {
		key = d.MessageID
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(d.Status)},
			{Key: "type", Value: []byte(d.Type)},
		},
	})
}

func (p *Publisher) Close() error { return p.w.Close() }

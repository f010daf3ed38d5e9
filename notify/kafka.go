package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSender publishes envelopes to a topic for the delivery workers.
// Messages are keyed by tracking code so one applicant's notifications
// stay ordered on a partition.
type KafkaSender struct {
	writer messageWriter
}

// messageWriter is the part of *kafka.Writer the sender uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			MaxAttempts:            3,
			WriteTimeout:           10 * time.Second,
		},
	}
}

func (k *KafkaSender) Send(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.TrackingCode),
		Value: value,
		Headers: []kafka.Header{
			{Key: "channel", Value: []byte(env.Channel)},
			{Key: "kind", Value: []byte(env.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s notification: %w", env.Channel, err)
	}
	return nil
}

func (k *KafkaSender) Close() error {
	return k.writer.Close()
}

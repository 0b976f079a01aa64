// Package feed publishes executed trades to external consumers. It sits
// strictly downstream of the matching path: trades are handed to it after
// the owning book's lock has been released.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"matchbook/internal/orderbook"
)

// Publisher writes trades to a Kafka topic, keyed by symbol so one symbol's
// trades stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, tr orderbook.Trade) error {
	value, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tr.Symbol),
		Value: value,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

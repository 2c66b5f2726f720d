package kafkaclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/ndax-bridge/domain"
)

var logger = logrus.WithField("component", "kafka-publisher")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher forwards accepted order book messages to a topic, keyed by trading
// pair so every pair keeps its order within one partition.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Errorf("failed to publish %d messages: %s", len(messages), err)
				}
			},
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, msg *domain.OrderBookMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s for %s: %w", msg.Type, msg.TradingPair, err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.TradingPair),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(msg.Type.String())},
		},
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

package domain

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "orderbook-maintainer")

// MaintainerMetrics receives the counters of the apply loop.
type MaintainerMetrics interface {
	QueueLength(n int)
	Applied(t MessageType)
	Stale()
	OpenOrderBooks(n int)
}

type noopMetrics struct{}

func (noopMetrics) QueueLength(int)     {}
func (noopMetrics) Applied(MessageType) {}
func (noopMetrics) Stale()              {}
func (noopMetrics) OpenOrderBooks(int)  {}

// OrderbookMaintainer is the single writer of the order book storage. It pops
// messages from the output queue in arrival order and applies them, relying on
// the update id check to drop whatever arrives late.
type OrderbookMaintainer struct {
	queue     *MessageQueue
	storage   *OrderBookStorage
	publisher MessagePublisher
	metrics   MaintainerMetrics
}

func NewOrderBookMaintainer(queue *MessageQueue, storage *OrderBookStorage) *OrderbookMaintainer {
	return &OrderbookMaintainer{
		queue:   queue,
		storage: storage,
		metrics: noopMetrics{},
	}
}

func (m *OrderbookMaintainer) WithMetrics(metrics MaintainerMetrics) *OrderbookMaintainer {
	m.metrics = metrics
	return m
}

// WithPublisher forwards every accepted message to p.
func (m *OrderbookMaintainer) WithPublisher(p MessagePublisher) *OrderbookMaintainer {
	m.publisher = p
	return m
}

// Run consumes the queue until ctx is done.
func (m *OrderbookMaintainer) Run(ctx context.Context) error {
	for {
		msg, err := m.queue.Pop(ctx)
		if err != nil {
			return err
		}
		m.metrics.QueueLength(m.queue.Len())

		m.apply(ctx, msg)
	}
}

func (m *OrderbookMaintainer) apply(ctx context.Context, msg *OrderBookMessage) {
	_, err := m.storage.Apply(msg)
	switch {
	case errors.Is(err, ErrStaleMessage):
		m.metrics.Stale()
		logger.WithFields(logrus.Fields{
			"pair":     msg.TradingPair,
			"updateId": msg.UpdateID,
		}).Debugf("dropped stale %s: %s", msg.Type, err)
		return
	case errors.Is(err, ErrOrderBookNotFound):
		logger.WithField("pair", msg.TradingPair).Debugf("dropped %s received before the first snapshot", msg.Type)
		return
	case err != nil:
		logger.WithField("pair", msg.TradingPair).Errorf("failed to apply %s: %s", msg.Type, err)
		return
	}

	m.metrics.Applied(msg.Type)
	m.metrics.OpenOrderBooks(m.storage.OrderBookCount())

	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, msg); err != nil {
			logger.WithField("pair", msg.TradingPair).Warnf("failed to publish %s: %s", msg.Type, err)
		}
	}
}

package domain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrOrderBookNotFound = errors.New("order book not found")

// OrderBookStorage keeps the live books of one provider, keyed by trading pair.
type OrderBookStorage struct {
	provider string
	storage  map[string]*OrderBook
	mu       sync.RWMutex
}

func NewOrderBookStorage(provider string) *OrderBookStorage {
	return &OrderBookStorage{
		provider: provider,
		storage:  make(map[string]*OrderBook),
	}
}

// Apply routes the message to the book of its trading pair. The first snapshot
// of a pair creates the book; diffs for a pair without a book are refused.
func (o *OrderBookStorage) Apply(msg *OrderBookMessage) (*OrderBook, error) {
	if msg.TradingPair == "" {
		return nil, fmt.Errorf("%s message %d has no trading pair", msg.Type, msg.UpdateID)
	}

	o.mu.Lock()
	orderBook, ok := o.storage[msg.TradingPair]
	if !ok {
		if msg.Type != MessageSnapshot {
			o.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrOrderBookNotFound, msg.TradingPair)
		}
		orderBook = NewOrderBook(o.provider, msg)
		o.storage[msg.TradingPair] = orderBook
		o.mu.Unlock()
		return orderBook, nil
	}
	o.mu.Unlock()

	return orderBook, orderBook.Apply(msg)
}

func (o *OrderBookStorage) Get(pair string) (*OrderBook, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	orderBook, ok := o.storage[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderBookNotFound, pair)
	}

	return orderBook, nil
}

// Remove destroys the book of an untracked pair.
func (o *OrderBookStorage) Remove(pair string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.storage, pair)
}

func (o *OrderBookStorage) OrderBookCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return len(o.storage)
}

func (o *OrderBookStorage) TradingPairs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	pairs := make([]string, 0, len(o.storage))
	for pair := range o.storage {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	return pairs
}

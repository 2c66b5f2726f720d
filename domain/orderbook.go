package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

type OrderBookSource string

const (
	OrderBookSource_Provider       OrderBookSource = "Provider"
	OrderBookSource_LocalOrderBook OrderBookSource = "LocalOrderBook"
)

// OrderBookSnapshot is a serializable copy of the book, either taken from the
// local book or fetched straight from the provider.
type OrderBookSnapshot struct {
	Source       OrderBookSource `json:"source"`
	TradingPair  string          `json:"tradingPair"`
	LastUpdateId int64           `json:"lastUpdateId"`
	Bids         [][]string      `json:"bids"`
	Asks         [][]string      `json:"asks"`
}

// PriceLevel is the aggregate quantity resting at one price.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func newPriceTree() *btree.BTreeG[PriceLevel] {
	return btree.NewBTreeG(func(a, b PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	})
}

// OrderBook holds the state of one instrument. Bids are kept in the same
// ascending tree as asks and read in reverse.
type OrderBook struct {
	Provider     string
	TradingPair  string
	InstrumentID int64

	bids           *btree.BTreeG[PriceLevel]
	asks           *btree.BTreeG[PriceLevel]
	lastUpdateID   int64
	lastUpdateTime int64

	updateMx sync.RWMutex
}

// NewOrderBook creates the book from its first snapshot.
func NewOrderBook(provider string, snapshot *OrderBookMessage) *OrderBook {
	ob := &OrderBook{
		Provider:     provider,
		TradingPair:  snapshot.TradingPair,
		InstrumentID: snapshot.InstrumentID,
		bids:         newPriceTree(),
		asks:         newPriceTree(),
	}
	ob.ApplySnapshot(snapshot)
	return ob
}

func (ob *OrderBook) Apply(msg *OrderBookMessage) error {
	switch msg.Type {
	case MessageSnapshot:
		ob.ApplySnapshot(msg)
		return nil
	case MessageDiff:
		return ob.ApplyDiff(msg)
	}
	return fmt.Errorf("unsupported order book message type %s", msg.Type)
}

// ApplySnapshot drops every level and rebuilds both sides from the message,
// whatever the current update id is.
func (ob *OrderBook) ApplySnapshot(msg *OrderBookMessage) {
	bids := newPriceTree()
	asks := newPriceTree()

	for _, entry := range msg.Entries {
		if !entry.Quantity.IsPositive() {
			continue
		}
		level := PriceLevel{Price: entry.Price, Quantity: entry.Quantity}
		if entry.Side == SideBid {
			bids.Set(level)
		} else {
			asks.Set(level)
		}
	}

	ob.updateMx.Lock()
	defer ob.updateMx.Unlock()

	ob.bids = bids
	ob.asks = asks
	ob.lastUpdateID = msg.UpdateID
	ob.lastUpdateTime = time.Now().UnixMilli()
	if msg.InstrumentID != 0 {
		ob.InstrumentID = msg.InstrumentID
	}
}

// ApplyDiff upserts positive levels and removes the others. A message older than
// the book is rejected with ErrStaleMessage and leaves the book untouched.
func (ob *OrderBook) ApplyDiff(msg *OrderBookMessage) error {
	ob.updateMx.Lock()
	defer ob.updateMx.Unlock()

	if msg.UpdateID < ob.lastUpdateID {
		return fmt.Errorf("%w: update %d < book %d", ErrStaleMessage, msg.UpdateID, ob.lastUpdateID)
	}

	for _, entry := range msg.Entries {
		depth := ob.asks
		if entry.Side == SideBid {
			depth = ob.bids
		}

		if entry.Quantity.IsPositive() {
			depth.Set(PriceLevel{Price: entry.Price, Quantity: entry.Quantity})
		} else {
			depth.Delete(PriceLevel{Price: entry.Price})
		}
	}

	ob.lastUpdateID = msg.UpdateID
	ob.lastUpdateTime = time.Now().UnixMilli()
	return nil
}

// BestBid returns the highest bid. An empty side is a valid state.
func (ob *OrderBook) BestBid() (PriceLevel, bool) {
	ob.updateMx.RLock()
	defer ob.updateMx.RUnlock()

	return ob.bids.Max()
}

// BestAsk returns the lowest ask.
func (ob *OrderBook) BestAsk() (PriceLevel, bool) {
	ob.updateMx.RLock()
	defer ob.updateMx.RUnlock()

	return ob.asks.Min()
}

func (ob *OrderBook) LastUpdateID() int64 {
	ob.updateMx.RLock()
	defer ob.updateMx.RUnlock()

	return ob.lastUpdateID
}

func (ob *OrderBook) LastUpdateTime() time.Time {
	ob.updateMx.RLock()
	defer ob.updateMx.RUnlock()

	return time.UnixMilli(ob.lastUpdateTime)
}

// Depth copies up to limit levels per side, bids descending and asks ascending.
// A limit <= 0 returns the full book.
func (ob *OrderBook) Depth(limit int) (bids []PriceLevel, asks []PriceLevel) {
	ob.updateMx.RLock()
	defer ob.updateMx.RUnlock()

	bids = make([]PriceLevel, 0, ob.limitDepth(ob.bids.Len(), limit))
	ob.bids.Reverse(func(level PriceLevel) bool {
		bids = append(bids, level)
		return limit <= 0 || len(bids) < limit
	})

	asks = make([]PriceLevel, 0, ob.limitDepth(ob.asks.Len(), limit))
	ob.asks.Scan(func(level PriceLevel) bool {
		asks = append(asks, level)
		return limit <= 0 || len(asks) < limit
	})

	return bids, asks
}

func (ob *OrderBook) TakeSnapshot(limit int) *OrderBookSnapshot {
	bids, asks := ob.Depth(limit)

	return &OrderBookSnapshot{
		Source:       OrderBookSource_LocalOrderBook,
		TradingPair:  ob.TradingPair,
		LastUpdateId: ob.LastUpdateID(),
		Bids:         serializePriceLevel(bids),
		Asks:         serializePriceLevel(asks),
	}
}

func (ob *OrderBook) limitDepth(size int, limit int) int {
	if limit > 0 && size > limit {
		return limit
	}

	return size
}

func serializePriceLevel(depth []PriceLevel) [][]string {
	result := make([][]string, len(depth))
	for i, level := range depth {
		result[i] = []string{level.Price.String(), level.Quantity.String()}
	}

	return result
}

// SnapshotFromMessage renders a provider snapshot message in the same shape as a
// local book snapshot.
func SnapshotFromMessage(msg *OrderBookMessage, limit int) *OrderBookSnapshot {
	ob := NewOrderBook("", msg)
	snapshot := ob.TakeSnapshot(limit)
	snapshot.Source = OrderBookSource_Provider
	return snapshot
}

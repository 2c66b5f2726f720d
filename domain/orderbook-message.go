package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Side int

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

type MessageType int

const (
	// Snapshot messages fully replace the book of their instrument.
	MessageSnapshot MessageType = iota + 1
	// Diff messages upsert or delete single price levels.
	MessageDiff
)

func (t MessageType) String() string {
	switch t {
	case MessageSnapshot:
		return "snapshot"
	case MessageDiff:
		return "diff"
	}
	return fmt.Sprintf("message(%d)", int(t))
}

// PriceLevelEntry is one row of depth, produced the same way by the REST snapshot
// and by the stream so the book does not care where it came from.
type PriceLevelEntry struct {
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt int64           `json:"updatedAt"`
}

type OrderBookMessage struct {
	Type         MessageType       `json:"type"`
	UpdateID     int64             `json:"updateId"`
	TradingPair  string            `json:"tradingPair"`
	InstrumentID int64             `json:"instrumentId"`
	Timestamp    int64             `json:"timestamp"`
	Entries      []PriceLevelEntry `json:"entries"`
}

func NewSnapshotMessage(pair string, instrumentID, updateID int64, entries []PriceLevelEntry) *OrderBookMessage {
	return &OrderBookMessage{
		Type:         MessageSnapshot,
		UpdateID:     updateID,
		TradingPair:  pair,
		InstrumentID: instrumentID,
		Timestamp:    updateID,
		Entries:      entries,
	}
}

func NewDiffMessage(pair string, instrumentID, updateID int64, entries []PriceLevelEntry) *OrderBookMessage {
	return &OrderBookMessage{
		Type:         MessageDiff,
		UpdateID:     updateID,
		TradingPair:  pair,
		InstrumentID: instrumentID,
		Timestamp:    updateID,
		Entries:      entries,
	}
}

// Bids returns the bid side entries of the batch.
func (m *OrderBookMessage) Bids() []PriceLevelEntry {
	return m.side(SideBid)
}

// Asks returns the ask side entries of the batch.
func (m *OrderBookMessage) Asks() []PriceLevelEntry {
	return m.side(SideAsk)
}

func (m *OrderBookMessage) side(s Side) []PriceLevelEntry {
	result := make([]PriceLevelEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.Side == s {
			result = append(result, e)
		}
	}
	return result
}

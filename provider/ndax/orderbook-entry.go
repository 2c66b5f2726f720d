package ndax

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/ndax-bridge/domain"
)

const (
	actionDelete = 2

	sideBuy  = 0
	sideSell = 1

	entryFields = 10
)

// OrderBookEntry is one level-2 row. The exchange sends it as a positional array:
// [MDUpdateId, AccountId, ActionDateTime, ActionType, LastTradePrice, OrderId,
// Price, ProductPairCode, Quantity, Side].
type OrderBookEntry struct {
	MDUpdateID      int64
	AccountID       int64
	ActionDateTime  int64
	ActionType      int
	LastTradePrice  decimal.Decimal
	OrderID         int64
	Price           decimal.Decimal
	ProductPairCode int64
	Quantity        decimal.Decimal
	Side            int
}

func (e *OrderBookEntry) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("order book entry is not an array: %w", err)
	}
	if len(fields) < entryFields {
		return fmt.Errorf("order book entry has %d fields, want %d", len(fields), entryFields)
	}

	targets := []any{
		&e.MDUpdateID,
		&e.AccountID,
		&e.ActionDateTime,
		&e.ActionType,
		&e.LastTradePrice,
		&e.OrderID,
		&e.Price,
		&e.ProductPairCode,
		&e.Quantity,
		&e.Side,
	}
	for i, target := range targets {
		if isNull(fields[i]) {
			continue
		}
		if err := json.Unmarshal(fields[i], target); err != nil {
			return fmt.Errorf("order book entry field %d: %w", i, err)
		}
	}

	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// ToPriceLevelEntry converts the row; rows with a side other than buy or sell
// are reported as not ok.
func (e OrderBookEntry) ToPriceLevelEntry() (domain.PriceLevelEntry, bool) {
	var side domain.Side
	switch e.Side {
	case sideBuy:
		side = domain.SideBid
	case sideSell:
		side = domain.SideAsk
	default:
		return domain.PriceLevelEntry{}, false
	}

	quantity := e.Quantity
	if e.ActionType == actionDelete {
		quantity = decimal.Zero
	}

	return domain.PriceLevelEntry{
		Side:      side,
		Price:     e.Price,
		Quantity:  quantity,
		UpdatedAt: e.ActionDateTime,
	}, true
}

func toPriceLevelEntries(entries []OrderBookEntry) []domain.PriceLevelEntry {
	result := make([]domain.PriceLevelEntry, 0, len(entries))
	for _, e := range entries {
		level, ok := e.ToPriceLevelEntry()
		if !ok {
			logger.WithField("side", e.Side).Debug("skipping order book entry with unknown side")
			continue
		}
		result = append(result, level)
	}
	return result
}

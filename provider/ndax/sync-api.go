package ndax

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/ndax-bridge/domain"
	"github.com/spooky-finn/ndax-bridge/helpers"
)

var logger = logrus.WithField("component", "ndax")

// SyncAPI is the request/response side of the exchange: full depth snapshots,
// last traded prices and the list of trading pairs.
type SyncAPI struct {
	rest      *RestClient
	directory *InstrumentDirectory
	clock     helpers.Clock
}

type level1 struct {
	InstrumentId int64           `json:"InstrumentId"`
	LastTradedPx decimal.Decimal `json:"LastTradedPx"`
}

func NewSyncAPI(rest *RestClient, directory *InstrumentDirectory) *SyncAPI {
	return &SyncAPI{
		rest:      rest,
		directory: directory,
		clock:     helpers.RealClock{},
	}
}

func (api *SyncAPI) WithClock(clock helpers.Clock) *SyncAPI {
	api.clock = clock
	return api
}

// OrderBookSnapshot refreshes the instrument directory and fetches the full
// book of pair. The update id is the capture time in milliseconds.
func (api *SyncAPI) OrderBookSnapshot(ctx context.Context, pair string) (*domain.OrderBookMessage, error) {
	if err := api.directory.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to refresh instruments: %w", err)
	}

	instrumentID, err := api.directory.Resolve(pair)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("InstrumentId", helpers.IntToString(instrumentID))
	params.Set("Depth", strconv.Itoa(SnapshotDepth))

	var entries []OrderBookEntry
	if err := api.rest.get(ctx, OrderBookURL, params, &entries); err != nil {
		return nil, fmt.Errorf("failed to get order book snapshot for %s: %w", pair, err)
	}

	capturedAt := helpers.UnixMilli(api.clock)
	return domain.NewSnapshotMessage(pair, instrumentID, capturedAt, toPriceLevelEntries(entries)), nil
}

// LastTradedPrices returns the last traded price of every pair.
func (api *SyncAPI) LastTradedPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	if err := api.directory.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to refresh instruments: %w", err)
	}

	result := make(map[string]decimal.Decimal, len(pairs))
	for _, pair := range pairs {
		instrumentID, err := api.directory.Resolve(pair)
		if err != nil {
			return nil, err
		}

		params := url.Values{}
		params.Set("InstrumentId", helpers.IntToString(instrumentID))

		var data level1
		if err := api.rest.get(ctx, LastTradedPriceURL, params, &data); err != nil {
			return nil, fmt.Errorf("failed to get last traded price for %s: %w", pair, err)
		}
		result[pair] = data.LastTradedPx
	}

	return result, nil
}

// TradingPairs lists every pair the exchange currently lists.
func (api *SyncAPI) TradingPairs(ctx context.Context) ([]string, error) {
	if err := api.directory.Refresh(ctx); err != nil {
		return nil, err
	}
	return api.directory.TradingPairs(), nil
}

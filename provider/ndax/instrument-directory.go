package ndax

import (
	"context"
	"sort"
	"sync"

	"github.com/spooky-finn/ndax-bridge/domain"
)

type Instrument struct {
	InstrumentId   int64  `json:"InstrumentId"`
	Symbol         string `json:"Symbol"`
	Product1Symbol string `json:"Product1Symbol"`
	Product2Symbol string `json:"Product2Symbol"`
}

// InstrumentDirectory maps BASE-QUOTE trading pairs to instrument ids and back.
type InstrumentDirectory struct {
	rest *RestClient

	mu     sync.RWMutex
	byPair map[string]int64
	byID   map[int64]string
}

func NewInstrumentDirectory(rest *RestClient) *InstrumentDirectory {
	return &InstrumentDirectory{
		rest:   rest,
		byPair: make(map[string]int64),
		byID:   make(map[int64]string),
	}
}

// Refresh reloads the whole instrument list. The cached mapping is replaced
// only when the new one is fully built, a failed refresh keeps the old one.
func (d *InstrumentDirectory) Refresh(ctx context.Context) error {
	var instruments []Instrument
	if err := d.rest.get(ctx, MarketsURL, nil, &instruments); err != nil {
		return err
	}

	byPair := make(map[string]int64, len(instruments))
	byID := make(map[int64]string, len(instruments))
	for _, instrument := range instruments {
		symbol, err := domain.NewMarketSymbol(instrument.Product1Symbol, instrument.Product2Symbol)
		if err != nil {
			logger.WithField("instrumentId", instrument.InstrumentId).Debugf("skipping instrument: %s", err)
			continue
		}
		byPair[symbol.String()] = instrument.InstrumentId
		byID[instrument.InstrumentId] = symbol.String()
	}

	d.mu.Lock()
	d.byPair = byPair
	d.byID = byID
	d.mu.Unlock()

	logger.Debugf("instrument directory refreshed, %d instruments", len(byPair))
	return nil
}

func (d *InstrumentDirectory) Resolve(pair string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byPair[pair]
	if !ok {
		return 0, &domain.UnknownInstrumentError{TradingPair: pair}
	}
	return id, nil
}

func (d *InstrumentDirectory) TradingPair(instrumentID int64) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	pair, ok := d.byID[instrumentID]
	if !ok {
		return "", &domain.UnknownInstrumentError{InstrumentID: instrumentID}
	}
	return pair, nil
}

func (d *InstrumentDirectory) TradingPairs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	pairs := make([]string, 0, len(d.byPair))
	for pair := range d.byPair {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

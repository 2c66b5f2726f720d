package domain

import (
	"fmt"
	"strings"
)

// MarketSymbol is a trading pair in BASE-QUOTE form.
type MarketSymbol struct {
	BaseAsset  string
	QuoteAsset string
}

func NewMarketSymbol(base string, quote string) (*MarketSymbol, error) {
	if base == "" || quote == "" {
		return nil, fmt.Errorf("base and quote must not be empty")
	}
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	if base == quote {
		return nil, fmt.Errorf("base and quote must be different")
	}
	return &MarketSymbol{
		BaseAsset:  base,
		QuoteAsset: quote,
	}, nil
}

func NewMarketSymbolFromString(s string) (*MarketSymbol, error) {
	split := strings.Split(strings.TrimSpace(s), "-")

	if len(split) != 2 {
		return nil, fmt.Errorf("invalid trading pair %q, expected BASE-QUOTE", s)
	}

	return NewMarketSymbol(split[0], split[1])
}

func (ms *MarketSymbol) Join(separator string) string {
	return fmt.Sprintf("%s%s%s", ms.BaseAsset, separator, ms.QuoteAsset)
}

// String renders the trading pair, e.g. BTC-CAD.
func (ms *MarketSymbol) String() string {
	return ms.Join("-")
}

// ExchangeSymbol renders the pair the way the exchange spells it, e.g. BTCCAD.
func (ms *MarketSymbol) ExchangeSymbol() string {
	return ms.Join("")
}

func (ms *MarketSymbol) Equal(other *MarketSymbol) bool {
	return ms.BaseAsset == other.BaseAsset && ms.QuoteAsset == other.QuoteAsset
}

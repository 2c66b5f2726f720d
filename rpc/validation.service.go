package rpc

import "github.com/spooky-finn/ndax-bridge/domain"

type ValidationServiceConfig struct {
	AvailableProviders []string
	TrackedPairs       []string
}

type ValidationService struct {
	config *ValidationServiceConfig
}

func NewValidationService(config *ValidationServiceConfig) *ValidationService {
	return &ValidationService{
		config: config,
	}
}

func (s *ValidationService) IsSupportedProvider(provider string) bool {
	for _, p := range s.config.AvailableProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// NormalizePair parses market into the canonical BASE-QUOTE form and checks it
// is one of the tracked pairs.
func (s *ValidationService) NormalizePair(market string) (string, bool) {
	symbol, err := domain.NewMarketSymbolFromString(market)
	if err != nil {
		return "", false
	}

	pair := symbol.String()
	for _, p := range s.config.TrackedPairs {
		if p == pair {
			return pair, true
		}
	}
	return pair, false
}

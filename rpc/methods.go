package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/spooky-finn/ndax-bridge/domain"
)

const defaultMaxDepth = 50

type OrderBookLevel struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

type GetOrderBookSnapshotResponse struct {
	Source       domain.OrderBookSource `json:"source"`
	Market       string                 `json:"market"`
	LastUpdateId int64                  `json:"lastUpdateId"`
	Bids         []OrderBookLevel       `json:"bids"`
	Asks         []OrderBookLevel       `json:"asks"`
}

type GetBestPricesResponse struct {
	Market         string          `json:"market"`
	StreamState    string          `json:"streamState"`
	LastUpdateTime int64           `json:"lastUpdateTime"`
	BestBid        *OrderBookLevel `json:"bestBid"`
	BestAsk        *OrderBookLevel `json:"bestAsk"`
}

type GetLastTradedPricesResponse struct {
	Prices map[string]string `json:"prices"`
}

type GetTradingPairsResponse struct {
	Tracked []string `json:"tracked"`
	Listed  []string `json:"listed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetOrderBookSnapshot serves GET /orderbook?provider=ndax&market=BTC-CAD&maxDepth=10.
func (s *Server) GetOrderBookSnapshot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	provider := query.Get("provider")
	if provider == "" {
		provider = s.provider
	}
	if !s.validationService.IsSupportedProvider(provider) {
		writeError(w, http.StatusBadRequest, "provider "+provider+" is not supported")
		return
	}

	market, ok := s.validationService.NormalizePair(query.Get("market"))
	if !ok {
		writeError(w, http.StatusNotFound, "market "+query.Get("market")+" is not tracked, expected BASE-QUOTE")
		return
	}

	maxDepth := defaultMaxDepth
	if raw := query.Get("maxDepth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 0 {
			writeError(w, http.StatusBadRequest, "maxDepth must be a non negative integer")
			return
		}
		maxDepth = depth
	}

	snapshot, err := s.orderbookSnapshotUseCase.GetOrderBookSnapshot(r.Context(), market, maxDepth)
	if err != nil {
		logger.WithField("market", market).Errorf("failed to get order book snapshot: %s", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &GetOrderBookSnapshotResponse{
		Source:       snapshot.Source,
		Market:       market,
		LastUpdateId: snapshot.LastUpdateId,
		Bids:         toLevels(snapshot.Bids),
		Asks:         toLevels(snapshot.Asks),
	})
}

// GetBestPrices serves GET /best?market=BTC-CAD from the live book only.
func (s *Server) GetBestPrices(w http.ResponseWriter, r *http.Request) {
	market, ok := s.validationService.NormalizePair(r.URL.Query().Get("market"))
	if !ok {
		writeError(w, http.StatusNotFound, "market is not tracked")
		return
	}

	bid, hasBid, err := s.tracker.BestBid(market)
	if errors.Is(err, domain.ErrOrderBookNotFound) {
		writeError(w, http.StatusServiceUnavailable, "order book is not live yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ask, hasAsk, err := s.tracker.BestAsk(market)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updatedAt, err := s.tracker.LastUpdateTime(market)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res := &GetBestPricesResponse{
		Market:         market,
		StreamState:    s.tracker.StreamState().String(),
		LastUpdateTime: updatedAt.UnixMilli(),
	}
	if hasBid {
		res.BestBid = &OrderBookLevel{Price: bid.Price.String(), Qty: bid.Quantity.String()}
	}
	if hasAsk {
		res.BestAsk = &OrderBookLevel{Price: ask.Price.String(), Qty: ask.Quantity.String()}
	}

	writeJSON(w, http.StatusOK, res)
}

// GetLastTradedPrices serves GET /prices?market=BTC-CAD; without market every
// tracked pair is priced.
func (s *Server) GetLastTradedPrices(w http.ResponseWriter, r *http.Request) {
	pairs := s.validationService.config.TrackedPairs
	if raw := r.URL.Query().Get("market"); raw != "" {
		market, ok := s.validationService.NormalizePair(raw)
		if !ok {
			writeError(w, http.StatusNotFound, "market "+raw+" is not tracked")
			return
		}
		pairs = []string{market}
	}

	prices, err := s.marketInfo.LastTradedPrices(r.Context(), pairs)
	if err != nil {
		logger.Errorf("failed to get last traded prices: %s", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	res := &GetLastTradedPricesResponse{Prices: make(map[string]string, len(prices))}
	for pair, price := range prices {
		res.Prices[pair] = price.String()
	}
	writeJSON(w, http.StatusOK, res)
}

// GetTradingPairs serves GET /pairs: the tracked pairs and every pair the
// exchange lists.
func (s *Server) GetTradingPairs(w http.ResponseWriter, r *http.Request) {
	listed, err := s.marketInfo.TradingPairs(r.Context())
	if err != nil {
		logger.Errorf("failed to list trading pairs: %s", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &GetTradingPairsResponse{
		Tracked: s.validationService.config.TrackedPairs,
		Listed:  listed,
	})
}

func toLevels(levels [][]string) []OrderBookLevel {
	result := make([]OrderBookLevel, 0, len(levels))
	for _, level := range levels {
		result = append(result, OrderBookLevel{
			Price: level[0],
			Qty:   level[1],
		})
	}
	return result
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugf("failed to write response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &errorResponse{Error: msg})
}

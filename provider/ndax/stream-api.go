package ndax

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gammazero/deque"
	"github.com/spooky-finn/ndax-bridge/domain"
	"github.com/spooky-finn/ndax-bridge/helpers"
	promclient "github.com/spooky-finn/ndax-bridge/infrastructure/prometheus"
)

type subscribeLevel2Request struct {
	OMSId        int64  `json:"OMSId"`
	InstrumentId int64  `json:"InstrumentId"`
	Symbol       string `json:"Symbol"`
	Depth        int    `json:"Depth"`
}

// StreamAPI turns the frames of one connection into order book messages.
type StreamAPI struct {
	client    *StreamClient
	directory *InstrumentDirectory
	omsID     int64

	// a frame may carry several instruments; the extra messages wait here
	pending deque.Deque[*domain.OrderBookMessage]
}

func NewStreamAPI(client *StreamClient, directory *InstrumentDirectory, omsID int64) *StreamAPI {
	return &StreamAPI{
		client:    client,
		directory: directory,
		omsID:     omsID,
	}
}

// Subscribe requests the level 2 feed of every pair on the current connection.
// Pairs the exchange does not list are skipped; only a failed write is an error.
func (s *StreamAPI) Subscribe(ctx context.Context, pairs []string) error {
	for _, pair := range pairs {
		instrumentID, err := s.directory.Resolve(pair)
		if err != nil {
			promclient.SubscribeSkippedCounter.WithLabelValues(pair).Inc()
			logger.WithField("pair", pair).Warnf("not subscribing: %s", err)
			continue
		}

		symbol, err := domain.NewMarketSymbolFromString(pair)
		if err != nil {
			promclient.SubscribeSkippedCounter.WithLabelValues(pair).Inc()
			logger.WithField("pair", pair).Warnf("not subscribing: %s", err)
			continue
		}

		req := subscribeLevel2Request{
			OMSId:        s.omsID,
			InstrumentId: instrumentID,
			Symbol:       symbol.ExchangeSymbol(),
			Depth:        SubscribeDepth,
		}
		logger.Debugf("subscribe request %s", helpers.ToJsonString(req))
		if err := s.client.SendRequest(ctx, WsOrderBookChannel, req); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", pair, err)
		}
		logger.WithField("pair", pair).Info("subscribed to level 2 updates")
	}

	return nil
}

// NextMessage blocks until the next snapshot or diff. Frames of other events
// are skipped. Once the connection ends it returns ErrStreamClosed.
func (s *StreamAPI) NextMessage(ctx context.Context) (*domain.OrderBookMessage, error) {
	for {
		if s.pending.Len() > 0 {
			return s.pending.PopFront(), nil
		}

		var raw []byte
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-s.client.Messages():
			if !ok {
				return nil, fmt.Errorf("%w: %v", domain.ErrStreamClosed, s.client.Err())
			}
			raw = msg
		}

		messages, err := s.decode(raw)
		if err != nil {
			return nil, err
		}
		for _, msg := range messages {
			s.pending.PushBack(msg)
		}
	}
}

func (s *StreamAPI) Close() error {
	return s.client.Close()
}

func (s *StreamAPI) decode(raw []byte) ([]*domain.OrderBookMessage, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, &domain.ProtocolError{Op: "decode frame", Err: err}
	}

	var msgType domain.MessageType
	switch frame.Endpoint {
	case WsOrderBookChannel:
		msgType = domain.MessageSnapshot
	case WsOrderBookL2UpdateEvent:
		msgType = domain.MessageDiff
	default:
		return nil, nil
	}

	if frame.MessageType == frameError {
		return nil, &domain.ProtocolError{Op: frame.Endpoint, Err: fmt.Errorf("exchange error: %s", frame.Payload)}
	}

	var entries []OrderBookEntry
	if err := json.Unmarshal([]byte(frame.Payload), &entries); err != nil {
		return nil, &domain.ProtocolError{Op: frame.Endpoint, Err: err}
	}

	return s.group(msgType, entries), nil
}

// group splits the batch by instrument, keeping the order in which instruments
// first appear. The update id of each message is its newest entry timestamp.
func (s *StreamAPI) group(msgType domain.MessageType, entries []OrderBookEntry) []*domain.OrderBookMessage {
	var order []int64
	batches := make(map[int64][]OrderBookEntry)
	for _, e := range entries {
		if _, ok := batches[e.ProductPairCode]; !ok {
			order = append(order, e.ProductPairCode)
		}
		batches[e.ProductPairCode] = append(batches[e.ProductPairCode], e)
	}

	messages := make([]*domain.OrderBookMessage, 0, len(order))
	for _, instrumentID := range order {
		pair, err := s.directory.TradingPair(instrumentID)
		if err != nil {
			logger.WithField("instrumentId", instrumentID).Debugf("skipping entries: %s", err)
			continue
		}

		batch := batches[instrumentID]
		var updateID int64
		for _, e := range batch {
			if e.ActionDateTime > updateID {
				updateID = e.ActionDateTime
			}
		}

		levels := toPriceLevelEntries(batch)
		if msgType == domain.MessageSnapshot {
			messages = append(messages, domain.NewSnapshotMessage(pair, instrumentID, updateID, levels))
		} else {
			messages = append(messages, domain.NewDiffMessage(pair, instrumentID, updateID, levels))
		}
	}

	return messages
}

// StreamConnector opens a fresh stream session per call.
type StreamConnector struct {
	endpoint  string
	directory *InstrumentDirectory
	limiter   *RateLimiter
	omsID     int64
}

func NewStreamConnector(endpoint string, directory *InstrumentDirectory, limiter *RateLimiter, omsID int64) *StreamConnector {
	return &StreamConnector{
		endpoint:  endpoint,
		directory: directory,
		limiter:   limiter,
		omsID:     omsID,
	}
}

// Connect refreshes the instrument directory and dials a new connection.
func (c *StreamConnector) Connect(ctx context.Context) (domain.ProviderStreamAPI, error) {
	if err := c.directory.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to refresh instruments: %w", err)
	}

	client, err := DialStreamClient(ctx, c.endpoint, c.limiter)
	if err != nil {
		return nil, &domain.NetworkError{Op: "connect", Err: err}
	}

	return NewStreamAPI(client, c.directory, c.omsID), nil
}

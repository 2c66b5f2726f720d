package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/ndax-bridge/domain"
)

// fakeClock records every sleep and cancels the test context on the
// cancelAt-th one.
type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	sleeps   []time.Duration
	cancelAt int
	cancel   context.CancelFunc
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Timer(d time.Duration) (<-chan time.Time, func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := func() bool { return true }
	c.sleeps = append(c.sleeps, d)
	if c.cancelAt > 0 && len(c.sleeps) >= c.cancelAt {
		c.cancel()
		return nil, stop
	}

	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch, stop
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type snapshotResult struct {
	msg *domain.OrderBookMessage
	err error
}

type fakeSyncAPI struct {
	mu      sync.Mutex
	results map[string][]snapshotResult
	calls   []string
}

func (f *fakeSyncAPI) OrderBookSnapshot(_ context.Context, pair string) (*domain.OrderBookMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, pair)
	results := f.results[pair]
	if len(results) == 0 {
		return nil, fmt.Errorf("no snapshot for %s", pair)
	}
	res := results[0]
	if len(results) > 1 {
		f.results[pair] = results[1:]
	}
	return res.msg, res.err
}

type fakeSession struct {
	// when set, no message is handed out before it is closed
	gate chan struct{}

	mu         sync.Mutex
	messages   []*domain.OrderBookMessage
	endErr     error
	subscribed []string
	closed     bool
}

func (s *fakeSession) Subscribe(_ context.Context, pairs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, pairs...)
	return nil
}

// NextMessage replays the scripted messages, then fails with endErr or blocks
// until ctx is done when endErr is nil.
func (s *fakeSession) NextMessage(ctx context.Context) (*domain.OrderBookMessage, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	if len(s.messages) > 0 {
		msg := s.messages[0]
		s.messages = s.messages[1:]
		s.mu.Unlock()
		return msg, nil
	}
	endErr := s.endErr
	s.mu.Unlock()

	if endErr != nil {
		return nil, endErr
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) state() (subscribed []string, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscribed...), s.closed
}

type fakeConnector struct {
	mu       sync.Mutex
	sessions []*fakeSession
	errs     []error
	connects int
}

func (c *fakeConnector) Connect(context.Context) (domain.ProviderStreamAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connects++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(c.sessions) == 0 {
		return nil, errors.New("no more sessions")
	}
	s := c.sessions[0]
	c.sessions = c.sessions[1:]
	return s, nil
}

func level(side domain.Side, price, quantity string) domain.PriceLevelEntry {
	return domain.PriceLevelEntry{
		Side:     side,
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(quantity),
	}
}

func btcSnapshot(updateID int64) *domain.OrderBookMessage {
	return domain.NewSnapshotMessage("BTC-CAD", 1, updateID, []domain.PriceLevelEntry{
		level(domain.SideBid, "100", "2"),
		level(domain.SideBid, "99", "1"),
		level(domain.SideAsk, "101", "3"),
	})
}

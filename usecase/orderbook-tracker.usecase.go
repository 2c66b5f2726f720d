package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/ndax-bridge/domain"
	"github.com/spooky-finn/ndax-bridge/helpers"
	promclient "github.com/spooky-finn/ndax-bridge/infrastructure/prometheus"
	"golang.org/x/sync/errgroup"
)

var logger = logrus.WithField("component", "orderbook-tracker")

const (
	DefaultSnapshotRetryDelay = 5 * time.Second
	DefaultStreamRetryDelay   = 30 * time.Second
)

type StreamState int32

const (
	StreamConnecting StreamState = iota
	StreamSubscribing
	StreamStreaming
	StreamBackingOff
	StreamStopped
)

func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamSubscribing:
		return "subscribing"
	case StreamStreaming:
		return "streaming"
	case StreamBackingOff:
		return "backing-off"
	case StreamStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// OrderBookTracker keeps the books of a fixed set of trading pairs in sync. An
// hourly snapshot loop and a streaming diff loop feed one queue, drained by a
// single maintainer.
type OrderBookTracker struct {
	pairs   []string
	tracked map[string]struct{}

	syncAPI    domain.ProviderSyncAPI
	connector  domain.StreamConnector
	queue      *domain.MessageQueue
	storage    *domain.OrderBookStorage
	maintainer *domain.OrderbookMaintainer

	clock              helpers.Clock
	snapshotRetryDelay time.Duration
	streamRetryDelay   time.Duration

	state atomic.Int32
}

func NewOrderBookTracker(
	pairs []string,
	syncAPI domain.ProviderSyncAPI,
	connector domain.StreamConnector,
	storage *domain.OrderBookStorage,
) *OrderBookTracker {
	tracked := make(map[string]struct{}, len(pairs))
	own := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if _, ok := tracked[pair]; ok {
			continue
		}
		tracked[pair] = struct{}{}
		own = append(own, pair)
	}

	queue := domain.NewMessageQueue()

	t := &OrderBookTracker{
		pairs:              own,
		tracked:            tracked,
		syncAPI:            syncAPI,
		connector:          connector,
		queue:              queue,
		storage:            storage,
		maintainer:         domain.NewOrderBookMaintainer(queue, storage).WithMetrics(promclient.MaintainerMetrics{}),
		clock:              helpers.RealClock{},
		snapshotRetryDelay: DefaultSnapshotRetryDelay,
		streamRetryDelay:   DefaultStreamRetryDelay,
	}
	t.state.Store(int32(StreamStopped))

	return t
}

func (t *OrderBookTracker) WithClock(clock helpers.Clock) *OrderBookTracker {
	t.clock = clock
	return t
}

func (t *OrderBookTracker) WithRetryDelays(snapshot, stream time.Duration) *OrderBookTracker {
	t.snapshotRetryDelay = snapshot
	t.streamRetryDelay = stream
	return t
}

func (t *OrderBookTracker) WithPublisher(p domain.MessagePublisher) *OrderBookTracker {
	t.maintainer.WithPublisher(p)
	return t
}

// Run drives the maintainer and both loops until ctx is done. The tracked
// books are dropped from storage on the way out.
func (t *OrderBookTracker) Run(ctx context.Context) error {
	defer func() {
		for _, pair := range t.pairs {
			t.storage.Remove(pair)
		}
	}()

	logger.WithField("pairs", t.pairs).Info("starting order book tracker")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.maintainer.Run(ctx) })
	g.Go(func() error { return t.ListenForSnapshots(ctx) })
	g.Go(func() error { return t.ListenForDiffs(ctx) })

	return g.Wait()
}

// ListenForSnapshots fetches a full snapshot of every pair, then sleeps until
// the next top of the hour. A failed fetch delays the cycle by the snapshot
// retry delay and moves on to the next pair.
func (t *OrderBookTracker) ListenForSnapshots(ctx context.Context) error {
	for {
		for _, pair := range t.pairs {
			msg, err := t.syncAPI.OrderBookSnapshot(ctx, pair)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				promclient.SnapshotFailuresCounter.WithLabelValues(pair).Inc()
				logger.WithField("pair", pair).Errorf(
					"failed to fetch order book snapshot, retrying in %s: %s", t.snapshotRetryDelay, err,
				)
				if err := helpers.Sleep(ctx, t.clock, t.snapshotRetryDelay); err != nil {
					return err
				}
				continue
			}

			msg.TradingPair = pair
			t.queue.Push(msg)
		}

		if err := helpers.Sleep(ctx, t.clock, helpers.UntilNextHour(t.clock)); err != nil {
			return err
		}
	}
}

// ListenForDiffs keeps one streaming session alive. Any failure closes the
// session and, after the stream retry delay, a new one is opened and every
// tracked pair is subscribed again.
func (t *OrderBookTracker) ListenForDiffs(ctx context.Context) error {
	var session domain.ProviderStreamAPI
	closeSession := func() {
		if session == nil {
			return
		}
		if err := session.Close(); err != nil {
			logger.Debugf("failed to close stream session: %s", err)
		}
		session = nil
	}
	defer closeSession()
	defer t.setState(StreamStopped)

	var err error
	state := StreamConnecting
	for {
		t.setState(state)

		switch state {
		case StreamConnecting:
			session, err = t.connector.Connect(ctx)
			state = t.next(err, StreamSubscribing)

		case StreamSubscribing:
			err = session.Subscribe(ctx, t.pairs)
			state = t.next(err, StreamStreaming)

		case StreamStreaming:
			err = t.stream(ctx, session)
			state = StreamBackingOff

		case StreamBackingOff:
			closeSession()
			if ctx.Err() != nil {
				return ctx.Err()
			}

			promclient.StreamReconnectsCounter.Inc()
			logger.Errorf("order book stream failed, reconnecting in %s: %s", t.streamRetryDelay, err)
			if err := helpers.Sleep(ctx, t.clock, t.streamRetryDelay); err != nil {
				return err
			}
			state = StreamConnecting
		}
	}
}

func (t *OrderBookTracker) next(err error, ok StreamState) StreamState {
	if err != nil {
		return StreamBackingOff
	}
	return ok
}

// stream forwards messages of the session until it fails.
func (t *OrderBookTracker) stream(ctx context.Context, session domain.ProviderStreamAPI) error {
	for {
		msg, err := session.NextMessage(ctx)
		if err != nil {
			return err
		}

		if _, ok := t.tracked[msg.TradingPair]; !ok {
			continue
		}
		t.queue.Push(msg)
	}
}

func (t *OrderBookTracker) setState(s StreamState) {
	t.state.Store(int32(s))
}

func (t *OrderBookTracker) StreamState() StreamState {
	return StreamState(t.state.Load())
}

func (t *OrderBookTracker) TradingPairs() []string {
	pairs := make([]string, len(t.pairs))
	copy(pairs, t.pairs)
	return pairs
}

func (t *OrderBookTracker) IsTracked(pair string) bool {
	_, ok := t.tracked[pair]
	return ok
}

// BestBid reports the highest bid of pair. ok is false while the side is empty.
func (t *OrderBookTracker) BestBid(pair string) (level domain.PriceLevel, ok bool, err error) {
	ob, err := t.storage.Get(pair)
	if err != nil {
		return domain.PriceLevel{}, false, err
	}
	level, ok = ob.BestBid()
	return level, ok, nil
}

func (t *OrderBookTracker) BestAsk(pair string) (level domain.PriceLevel, ok bool, err error) {
	ob, err := t.storage.Get(pair)
	if err != nil {
		return domain.PriceLevel{}, false, err
	}
	level, ok = ob.BestAsk()
	return level, ok, nil
}

// LastUpdateTime is the wall clock time the book of pair last changed.
func (t *OrderBookTracker) LastUpdateTime(pair string) (time.Time, error) {
	ob, err := t.storage.Get(pair)
	if err != nil {
		return time.Time{}, err
	}
	return ob.LastUpdateTime(), nil
}

func (t *OrderBookTracker) Depth(pair string, limit int) (*domain.OrderBookSnapshot, error) {
	ob, err := t.storage.Get(pair)
	if err != nil {
		return nil, err
	}
	return ob.TakeSnapshot(limit), nil
}

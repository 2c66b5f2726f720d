package usecase

import (
	"context"
	"errors"

	"github.com/spooky-finn/ndax-bridge/domain"
)

type OrderBookSnapshotUseCase struct {
	storage *domain.OrderBookStorage
	syncAPI domain.ProviderSyncAPI
}

func NewOrderBookSnapshotUseCase(storage *domain.OrderBookStorage, syncAPI domain.ProviderSyncAPI) *OrderBookSnapshotUseCase {
	return &OrderBookSnapshotUseCase{
		storage: storage,
		syncAPI: syncAPI,
	}
}

// GetOrderBookSnapshot returns the snapshot of the local book, or the provider's
// snapshot while the local book has not received its first snapshot yet.
func (o *OrderBookSnapshotUseCase) GetOrderBookSnapshot(
	ctx context.Context, pair string, limit int,
) (*domain.OrderBookSnapshot, error) {
	orderbook, err := o.storage.Get(pair)
	if errors.Is(err, domain.ErrOrderBookNotFound) {
		logger.WithField("pair", pair).Debug("local order book is not live yet, provider snapshot returned")

		msg, err := o.syncAPI.OrderBookSnapshot(ctx, pair)
		if err != nil {
			return nil, err
		}
		return domain.SnapshotFromMessage(msg, limit), nil
	}
	if err != nil {
		return nil, err
	}

	return orderbook.TakeSnapshot(limit), nil
}

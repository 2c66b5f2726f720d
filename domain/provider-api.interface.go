package domain

import "context"

// ProviderSyncAPI fetches full-depth snapshots over request/response transport.
type ProviderSyncAPI interface {
	OrderBookSnapshot(ctx context.Context, pair string) (*OrderBookMessage, error)
}

// ProviderStreamAPI is one streaming session. It is bound to a single
// connection and is never reused after Close.
type ProviderStreamAPI interface {
	Subscribe(ctx context.Context, pairs []string) error
	// NextMessage returns ErrStreamClosed once the connection is gone.
	NextMessage(ctx context.Context) (*OrderBookMessage, error)
	Close() error
}

// StreamConnector opens a fresh streaming session.
type StreamConnector interface {
	Connect(ctx context.Context) (ProviderStreamAPI, error)
}

// InstrumentResolver maps trading pairs to exchange instrument ids.
type InstrumentResolver interface {
	Refresh(ctx context.Context) error
	Resolve(pair string) (int64, error)
}

// AuthProvider supplies request headers for the REST transport.
type AuthProvider interface {
	Headers() map[string]string
}

// MessagePublisher receives every message accepted by the maintainer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *OrderBookMessage) error
}

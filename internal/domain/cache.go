package domain

import (
	"context"
	"time"
)

// OrderbookCache stores the latest order book per market outcome so several
// processes can share it.
type OrderbookCache interface {
	SetBook(ctx context.Context, book OrderBook) error
	GetBook(ctx context.Context, marketID, outcomeID string) (OrderBook, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub between the ingest and api processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

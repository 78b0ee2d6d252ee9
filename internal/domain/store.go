package domain

import "context"

// MarketStore persists market metadata.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	ListAll(ctx context.Context) ([]Market, error)
}

// QuoteStore persists price history.
type QuoteStore interface {
	Insert(ctx context.Context, q QuotePoint) error
	ListRecent(ctx context.Context, marketID, outcomeID string, limit int) ([]QuotePoint, error)
}

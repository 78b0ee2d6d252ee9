package domain

import "context"

// Catalog is the read side of the market catalog. Unknown ids produce absent
// results rather than errors.
type Catalog interface {
	ListMarkets() []Market
	GetMarket(id string) (Market, bool)
	GetHistory(marketID, outcomeID string) []QuotePoint
	GetOrderbook(marketID, outcomeID string) (OrderBook, bool)
}

// CatalogWriter is the write side used by fetchers and pollers.
type CatalogWriter interface {
	UpsertMarkets(markets []Market)
	AppendQuote(q QuotePoint)
	SetOrderbook(b OrderBook)
}

// RemoteFetcher loads markets matching free text from an upstream venue into
// the catalog.
type RemoteFetcher interface {
	SearchMarkets(ctx context.Context, text string) error
}

// OrderbookSource fetches a live order book for one market outcome.
type OrderbookSource interface {
	FetchOrderbook(ctx context.Context, market Market, outcomeID string) (OrderBook, error)
}

// CatalogStore is a catalog that can be both read and written.
type CatalogStore interface {
	Catalog
	CatalogWriter
}

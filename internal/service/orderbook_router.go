package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/alanyoungcy/marketstream/internal/platform/kalshi"
	"github.com/alanyoungcy/marketstream/internal/platform/polymarket"
)

// KalshiBooks fetches Kalshi order books by market ticker.
type KalshiBooks interface {
	GetOrderbook(ctx context.Context, ticker string) (kalshi.KalshiOrderbook, error)
}

// ClobBooks fetches Polymarket order books by CLOB token id.
type ClobBooks interface {
	GetBook(ctx context.Context, tokenID string) (polymarket.APIBook, error)
}

// OrderbookRouter fetches live books from the venue a market belongs to. It
// implements domain.OrderbookSource. Either client may be nil, in which case
// that venue's markets are not quoted.
type OrderbookRouter struct {
	kalshi KalshiBooks
	clob   ClobBooks
	now    func() time.Time
}

// NewOrderbookRouter creates a router over the given venue clients.
func NewOrderbookRouter(k KalshiBooks, c ClobBooks) *OrderbookRouter {
	return &OrderbookRouter{kalshi: k, clob: c, now: time.Now}
}

// FetchOrderbook implements domain.OrderbookSource.
func (r *OrderbookRouter) FetchOrderbook(ctx context.Context, m domain.Market, outcomeID string) (domain.OrderBook, error) {
	switch m.Source {
	case domain.SourceKalshi:
		if r.kalshi == nil {
			break
		}
		ob, err := r.kalshi.GetOrderbook(ctx, m.ID)
		if err != nil {
			return domain.OrderBook{}, err
		}
		return ob.ToOrderBook(m.ID, outcomeID, r.now())
	case domain.SourcePolymarket:
		if r.clob == nil {
			break
		}
		book, err := r.clob.GetBook(ctx, outcomeID)
		if err != nil {
			return domain.OrderBook{}, err
		}
		return book.ToOrderBook(m.ID, outcomeID, r.now()), nil
	}
	return domain.OrderBook{}, fmt.Errorf("orderbook: no client for source %q", m.Source)
}

var _ domain.OrderbookSource = (*OrderbookRouter)(nil)

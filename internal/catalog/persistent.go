package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

const writeTimeout = 5 * time.Second

// Persistent decorates a Memory catalog with write-through to durable
// stores. Reads are always served from memory. Store failures are logged and
// never surfaced to callers.
type Persistent struct {
	*Memory
	markets domain.MarketStore
	quotes  domain.QuoteStore
	books   domain.OrderbookCache
	logger  *slog.Logger
}

// NewPersistent wraps mem. Any of the stores may be nil, in which case that
// part of the state lives only in memory.
func NewPersistent(mem *Memory, markets domain.MarketStore, quotes domain.QuoteStore, books domain.OrderbookCache, logger *slog.Logger) *Persistent {
	return &Persistent{
		Memory:  mem,
		markets: markets,
		quotes:  quotes,
		books:   books,
		logger:  logger.With(slog.String("component", "catalog")),
	}
}

// Hydrate loads markets and their most recent quotes from the market and
// quote stores into memory.
func (p *Persistent) Hydrate(ctx context.Context) error {
	if p.markets == nil {
		return nil
	}
	markets, err := p.markets.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("catalog: hydrate markets: %w", err)
	}
	p.Memory.UpsertMarkets(markets)

	if p.quotes != nil {
		for _, m := range markets {
			for _, o := range m.Outcomes {
				pts, err := p.quotes.ListRecent(ctx, m.ID, o.ID, p.historyLimit)
				if err != nil {
					return fmt.Errorf("catalog: hydrate quotes for %s: %w", m.ID, err)
				}
				for _, q := range pts {
					p.Memory.AppendQuote(q)
				}
			}
		}
	}
	p.logger.Info("catalog hydrated", slog.Int("markets", len(markets)))
	return nil
}

// Refresh reloads market metadata from the market store so markets written
// by another process become visible. Quote history is left alone, since this
// process records its own quotes as it polls. It returns the number of
// markets added to memory.
func (p *Persistent) Refresh(ctx context.Context) (int, error) {
	if p.markets == nil {
		return 0, nil
	}
	markets, err := p.markets.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: refresh markets: %w", err)
	}
	before := p.Memory.Len()
	p.Memory.UpsertMarkets(markets)
	return p.Memory.Len() - before, nil
}

// UpsertMarkets updates memory and writes the batch through to the market
// store.
func (p *Persistent) UpsertMarkets(markets []domain.Market) {
	p.Memory.UpsertMarkets(markets)
	if p.markets == nil || len(markets) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.markets.UpsertBatch(ctx, markets); err != nil {
		p.logger.Warn("market write-through failed",
			slog.Int("count", len(markets)),
			slog.String("error", err.Error()),
		)
	}
}

// AppendQuote records the quote in memory and in the quote store.
func (p *Persistent) AppendQuote(q domain.QuotePoint) {
	p.Memory.AppendQuote(q)
	if p.quotes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.quotes.Insert(ctx, q); err != nil {
		p.logger.Warn("quote write-through failed",
			slog.String("market_id", q.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// SetOrderbook stores the book in memory and mirrors it to the shared cache.
func (p *Persistent) SetOrderbook(b domain.OrderBook) {
	p.Memory.SetOrderbook(b)
	if p.books == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.books.SetBook(ctx, b); err != nil {
		p.logger.Warn("orderbook cache write failed",
			slog.String("market_id", b.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// GetOrderbook prefers the in-memory book and falls back to the shared cache,
// which may hold books written by another process.
func (p *Persistent) GetOrderbook(marketID, outcomeID string) (domain.OrderBook, bool) {
	if b, ok := p.Memory.GetOrderbook(marketID, outcomeID); ok {
		return b, true
	}
	if p.books == nil {
		return domain.OrderBook{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	b, err := p.books.GetBook(ctx, marketID, outcomeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("orderbook cache read failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		return domain.OrderBook{}, false
	}
	return b, true
}

// Package feed produces live market updates by polling venue order books.
package feed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultFetchTimeout = 5 * time.Second
	defaultConcurrency  = 4
)

// MarketTracker reports which markets currently have listeners.
type MarketTracker interface {
	MarketIDs() []string
}

// BookHandler consumes fetched order books.
type BookHandler interface {
	HandleBookUpdate(ctx context.Context, book domain.OrderBook) error
}

// PollerConfig tunes the QuotePoller.
type PollerConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Concurrency  int
}

// QuotePoller periodically fetches order books for every outcome of every
// tracked market and hands them to a BookHandler.
type QuotePoller struct {
	tracker MarketTracker
	catalog domain.Catalog
	source  domain.OrderbookSource
	handler BookHandler
	cfg     PollerConfig
	logger  *slog.Logger
}

// NewQuotePoller creates a QuotePoller.
func NewQuotePoller(tracker MarketTracker, catalog domain.Catalog, source domain.OrderbookSource, handler BookHandler, cfg PollerConfig, logger *slog.Logger) *QuotePoller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &QuotePoller{
		tracker: tracker,
		catalog: catalog,
		source:  source,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "quote_poller")),
	}
}

// Run polls every Interval until ctx is cancelled.
func (p *QuotePoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("quote poller started", slog.Duration("interval", p.cfg.Interval))
	defer p.logger.Info("quote poller stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

type target struct {
	market    domain.Market
	outcomeID string
}

// PollOnce fetches every tracked outcome once and returns the number of
// books handed to the handler. Fetch failures are logged and skipped.
func (p *QuotePoller) PollOnce(ctx context.Context) int {
	var targets []target
	for _, id := range p.tracker.MarketIDs() {
		m, ok := p.catalog.GetMarket(id)
		if !ok {
			continue
		}
		for _, o := range m.Outcomes {
			targets = append(targets, target{market: m, outcomeID: o.ID})
		}
	}
	if len(targets) == 0 {
		return 0
	}

	results := make([]bool, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, tg := range targets {
		g.Go(func() error {
			results[i] = p.pollOne(gctx, tg)
			return nil
		})
	}
	_ = g.Wait()

	handled := 0
	for _, ok := range results {
		if ok {
			handled++
		}
	}
	return handled
}

func (p *QuotePoller) pollOne(ctx context.Context, tg target) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	book, err := p.source.FetchOrderbook(fetchCtx, tg.market, tg.outcomeID)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("orderbook fetch failed",
				slog.String("market_id", tg.market.ID),
				slog.String("outcome_id", tg.outcomeID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	if err := p.handler.HandleBookUpdate(ctx, book); err != nil {
		p.logger.Warn("book update failed",
			slog.String("market_id", tg.market.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

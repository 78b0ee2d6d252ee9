package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/alanyoungcy/marketstream/internal/platform/kalshi"
)

const (
	defaultEventPageSize = 200
	defaultEventMaxPages = 5
)

// KalshiEvents is the part of the Kalshi client the on-demand fetcher uses.
type KalshiEvents interface {
	GetEvents(ctx context.Context, p kalshi.EventsParams) (kalshi.KalshiEventsPage, error)
}

// OnDemandFetcher searches open Kalshi events for markets whose titles match
// the query text and upserts them into the catalog. It implements
// domain.RemoteFetcher.
type OnDemandFetcher struct {
	client   KalshiEvents
	catalog  domain.CatalogWriter
	pageSize int
	maxPages int
	logger   *slog.Logger
}

// NewOnDemandFetcher creates a fetcher writing into catalog.
func NewOnDemandFetcher(client KalshiEvents, catalog domain.CatalogWriter, logger *slog.Logger) *OnDemandFetcher {
	return &OnDemandFetcher{
		client:   client,
		catalog:  catalog,
		pageSize: defaultEventPageSize,
		maxPages: defaultEventMaxPages,
		logger:   logger.With(slog.String("component", "ondemand_fetcher")),
	}
}

// SearchMarkets pages through open events until the cursor runs out, the
// page cap is reached or ctx expires. Matches found before a failure are
// still upserted; the error is returned only when nothing was loaded.
func (f *OnDemandFetcher) SearchMarkets(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		matched []domain.Market
		cursor  string
		pageErr error
	)
	for page := 0; page < f.maxPages; page++ {
		resp, err := f.client.GetEvents(ctx, kalshi.EventsParams{
			Status:      "open",
			Cursor:      cursor,
			Limit:       f.pageSize,
			WithMarkets: true,
		})
		if err != nil {
			pageErr = err
			break
		}
		for _, ev := range resp.Events {
			for _, m := range ev.Markets {
				if m.Ticker == "" || !m.MatchesText(ev, text) {
					continue
				}
				matched = append(matched, m.ToDomain(ev))
			}
		}
		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	if len(matched) > 0 {
		f.catalog.UpsertMarkets(matched)
	}
	f.logger.Debug("on-demand search",
		slog.String("query", text),
		slog.Int("matched", len(matched)),
	)

	if pageErr != nil && len(matched) == 0 {
		return fmt.Errorf("ondemand: search %q: %w", text, pageErr)
	}
	if pageErr != nil {
		f.logger.Warn("on-demand search stopped early",
			slog.String("query", text),
			slog.String("error", pageErr.Error()),
		)
	}
	return nil
}

var _ domain.RemoteFetcher = (*OnDemandFetcher)(nil)

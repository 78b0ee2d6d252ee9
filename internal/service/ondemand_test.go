package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/marketstream/internal/catalog"
	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/alanyoungcy/marketstream/internal/platform/kalshi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEvents struct {
	pages []kalshi.KalshiEventsPage
	errAt int // page index that fails, -1 for none
	calls []kalshi.EventsParams
}

func (f *fakeEvents) GetEvents(_ context.Context, p kalshi.EventsParams) (kalshi.KalshiEventsPage, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, p)
	if idx == f.errAt {
		return kalshi.KalshiEventsPage{}, errors.New("upstream down")
	}
	if idx >= len(f.pages) {
		return kalshi.KalshiEventsPage{}, nil
	}
	return f.pages[idx], nil
}

func fedEvent() kalshi.KalshiEvent {
	return kalshi.KalshiEvent{
		EventTicker:  "KXFED-26",
		SeriesTicker: "KXFED",
		Title:        "Fed decision in March",
		Category:     "Economics",
		Markets: []kalshi.KalshiMarket{
			{Ticker: "KXFED-26-CUT", Title: "Will the Fed cut rates?"},
			{Ticker: "KXFED-26-HOLD", Title: "Will the Fed hold rates?"},
		},
	}
}

func btcEvent() kalshi.KalshiEvent {
	return kalshi.KalshiEvent{
		EventTicker: "KXBTC-26",
		Title:       "Bitcoin price",
		Category:    "Crypto",
		Markets: []kalshi.KalshiMarket{
			{Ticker: "KXBTC-26-100K", Title: "Bitcoin above 100k?"},
		},
	}
}

func TestOnDemandFetcherSearchMarkets(t *testing.T) {
	t.Run("matches across pages", func(t *testing.T) {
		events := &fakeEvents{
			errAt: -1,
			pages: []kalshi.KalshiEventsPage{
				{Events: []kalshi.KalshiEvent{btcEvent()}, Cursor: "next"},
				{Events: []kalshi.KalshiEvent{fedEvent()}},
			},
		}
		cat := catalog.NewMemory(0)
		f := NewOnDemandFetcher(events, cat, testLogger())

		if err := f.SearchMarkets(context.Background(), "  fed "); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(events.calls) != 2 {
			t.Fatalf("calls = %d, want 2", len(events.calls))
		}
		first := events.calls[0]
		if first.Status != "open" || !first.WithMarkets || first.Cursor != "" {
			t.Errorf("first call params = %+v", first)
		}
		if events.calls[1].Cursor != "next" {
			t.Errorf("second cursor = %q, want next", events.calls[1].Cursor)
		}

		got := cat.ListMarkets()
		if len(got) != 2 {
			t.Fatalf("catalog has %d markets, want 2", len(got))
		}
		if got[0].ID != "KXFED-26-CUT" || got[0].Source != domain.SourceKalshi {
			t.Errorf("first market = %+v", got[0])
		}
	})

	t.Run("empty text is a no-op", func(t *testing.T) {
		events := &fakeEvents{errAt: -1}
		f := NewOnDemandFetcher(events, catalog.NewMemory(0), testLogger())
		if err := f.SearchMarkets(context.Background(), "   "); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(events.calls) != 0 {
			t.Errorf("calls = %d, want 0", len(events.calls))
		}
	})

	t.Run("failure with no matches is returned", func(t *testing.T) {
		events := &fakeEvents{errAt: 0}
		cat := catalog.NewMemory(0)
		f := NewOnDemandFetcher(events, cat, testLogger())
		if err := f.SearchMarkets(context.Background(), "fed"); err == nil {
			t.Fatal("expected error")
		}
		if cat.Len() != 0 {
			t.Errorf("catalog len = %d, want 0", cat.Len())
		}
	})

	t.Run("partial results survive a later failure", func(t *testing.T) {
		events := &fakeEvents{
			errAt: 1,
			pages: []kalshi.KalshiEventsPage{
				{Events: []kalshi.KalshiEvent{fedEvent()}, Cursor: "next"},
			},
		}
		cat := catalog.NewMemory(0)
		f := NewOnDemandFetcher(events, cat, testLogger())
		if err := f.SearchMarkets(context.Background(), "fed"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cat.Len() != 2 {
			t.Errorf("catalog len = %d, want 2", cat.Len())
		}
	})

	t.Run("page cap", func(t *testing.T) {
		events := &fakeEvents{errAt: -1}
		for range 10 {
			events.pages = append(events.pages, kalshi.KalshiEventsPage{Cursor: "more"})
		}
		f := NewOnDemandFetcher(events, catalog.NewMemory(0), testLogger())
		_ = f.SearchMarkets(context.Background(), "x")
		if len(events.calls) != defaultEventMaxPages {
			t.Errorf("calls = %d, want %d", len(events.calls), defaultEventMaxPages)
		}
	})
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// PriceService records order book updates in the catalog and announces them
// on the signal bus.
type PriceService struct {
	catalog domain.CatalogWriter
	bus     domain.SignalBus
	channel string
	logger  *slog.Logger
}

// NewPriceService creates a PriceService publishing on channel.
func NewPriceService(
	catalog domain.CatalogWriter,
	bus domain.SignalBus,
	channel string,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		catalog: catalog,
		bus:     bus,
		channel: channel,
		logger:  logger.With(slog.String("component", "price_service")),
	}
}

// HandleBookUpdate stores the book, appends a quote at the mid price and
// publishes a market_update event. Books with no levels are stored but
// produce neither a quote nor an event.
func (s *PriceService) HandleBookUpdate(ctx context.Context, book domain.OrderBook) error {
	s.catalog.SetOrderbook(book)

	mid, ok := book.MidPrice()
	if !ok {
		return nil
	}
	s.catalog.AppendQuote(domain.QuotePoint{
		MarketID:  book.MarketID,
		OutcomeID: book.OutcomeID,
		Price:     mid,
		Timestamp: book.Timestamp,
	})

	evt := domain.MarketEvent{
		Type:      domain.EventMarketUpdate,
		MarketID:  book.MarketID,
		OutcomeID: book.OutcomeID,
		Price:     &mid,
		Timestamp: book.Timestamp,
	}
	if bid, ok := book.BestBid(); ok {
		evt.BestBid = &bid
	}
	if ask, ok := book.BestAsk(); ok {
		evt.BestAsk = &ask
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("price_service: encode event: %w", err)
	}
	if err := s.bus.Publish(ctx, s.channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish market update failed",
			slog.String("market_id", book.MarketID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

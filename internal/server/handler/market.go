package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	List(source, text string) []domain.Market
	Get(id string) (domain.Market, error)
	History(id, outcomeID string) ([]domain.QuotePoint, error)
	Orderbook(id, outcomeID string) (*domain.OrderBook, error)
	Related(id string) (*domain.Market, error)
}

// Searcher runs catalog searches.
type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) domain.SearchResult
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets      MarketService
	search       Searcher
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// NewMarketHandler creates a MarketHandler. Non-positive limits fall back to
// DefaultLimit and MaxLimit.
func NewMarketHandler(markets MarketService, search Searcher, defaultLimit, maxLimit int, logger *slog.Logger) *MarketHandler {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	return &MarketHandler{
		markets:      markets,
		search:       search,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger.With(slog.String("handler", "market")),
	}
}

// ListMarkets returns the catalog, optionally filtered by source and a
// substring of title, description or outcome names.
// GET /markets?source=kalshi&q=fed
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.markets.List(q.Get("source"), q.Get("q")))
}

// SearchMarkets runs a scored search with facets.
// GET /markets/search?q=&sector=&tags=&tags=&source=&limit=&offset=
func (h *MarketHandler) SearchMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parsePage(r, h.defaultLimit, h.maxLimit)

	res := h.search.Search(r.Context(), domain.SearchQuery{
		Text:   q.Get("q"),
		Sector: q.Get("sector"),
		Tags:   queryTags(r),
		Source: domain.Source(q.Get("source")),
		Limit:  limit,
		Offset: offset,
	})
	writeJSON(w, http.StatusOK, res)
}

// GetMarket returns a single market by its ID.
// GET /markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetHistory returns the quote history of one outcome, defaulting to the
// market's first outcome.
// GET /markets/{id}/history?outcome_id=
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	pts, err := h.markets.History(r.PathValue("id"), r.URL.Query().Get("outcome_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pts)
}

// GetOrderbook returns the latest book of one outcome or null.
// GET /markets/{id}/orderbook?outcome_id=
func (h *MarketHandler) GetOrderbook(w http.ResponseWriter, r *http.Request) {
	book, err := h.markets.Orderbook(r.PathValue("id"), r.URL.Query().Get("outcome_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// GetRelated returns the most similar market from the other venue or null.
// GET /markets/{id}/related
func (h *MarketHandler) GetRelated(w http.ResponseWriter, r *http.Request) {
	rel, err := h.markets.Related(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

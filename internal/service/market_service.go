package service

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// MarketService answers the per-market read endpoints from the catalog.
type MarketService struct {
	catalog          domain.Catalog
	relatedThreshold float64
}

// NewMarketService creates a MarketService over catalog.
func NewMarketService(catalog domain.Catalog) *MarketService {
	return &MarketService{
		catalog:          catalog,
		relatedThreshold: DefaultRelatedThreshold,
	}
}

// List returns catalog markets in catalog order, optionally restricted to a
// source and to markets whose title, description or outcome names contain
// text. No scoring is applied.
func (s *MarketService) List(source, text string) []domain.Market {
	markets := s.catalog.ListMarkets()
	needle := strings.ToLower(text)

	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if source != "" && string(m.Source) != source {
			continue
		}
		if needle != "" && !containsText(m, needle) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func containsText(m domain.Market, needle string) bool {
	if strings.Contains(strings.ToLower(m.Title), needle) ||
		strings.Contains(strings.ToLower(m.Description), needle) {
		return true
	}
	for _, o := range m.Outcomes {
		if strings.Contains(strings.ToLower(o.Name), needle) {
			return true
		}
	}
	return false
}

// Get returns the market with id or domain.ErrNotFound.
func (s *MarketService) Get(id string) (domain.Market, error) {
	m, ok := s.catalog.GetMarket(id)
	if !ok {
		return domain.Market{}, fmt.Errorf("market %s: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// resolveOutcome defaults an empty outcomeID to the market's first outcome.
// An id the market does not list is rejected with domain.ErrInvalidQuery.
func resolveOutcome(m domain.Market, outcomeID string) (string, error) {
	if outcomeID == "" {
		return m.FirstOutcomeID(), nil
	}
	if !m.HasOutcome(outcomeID) {
		return "", fmt.Errorf("outcome %s not in market %s: %w", outcomeID, m.ID, domain.ErrInvalidQuery)
	}
	return outcomeID, nil
}

// History returns the price history of one outcome. An empty outcomeID
// selects the market's first outcome; a market with no outcomes or an
// unknown outcomeID yields domain.ErrInvalidQuery. The result is never nil.
func (s *MarketService) History(id, outcomeID string) ([]domain.QuotePoint, error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	outcomeID, err = resolveOutcome(m, outcomeID)
	if err != nil {
		return nil, err
	}
	if outcomeID == "" {
		return nil, fmt.Errorf("outcome_id required: %w", domain.ErrInvalidQuery)
	}

	pts := s.catalog.GetHistory(id, outcomeID)
	if pts == nil {
		pts = []domain.QuotePoint{}
	}
	return pts, nil
}

// Orderbook returns the latest book of one outcome, or nil when none is
// known. An empty outcomeID selects the market's first outcome; an unknown
// one yields domain.ErrInvalidQuery.
func (s *MarketService) Orderbook(id, outcomeID string) (*domain.OrderBook, error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	outcomeID, err = resolveOutcome(m, outcomeID)
	if err != nil {
		return nil, err
	}

	book, ok := s.catalog.GetOrderbook(id, outcomeID)
	if !ok {
		return nil, nil
	}
	return &book, nil
}

// Related returns the closest market from the other venue, or nil.
func (s *MarketService) Related(id string) (*domain.Market, error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	rel, ok := FindRelated(m, s.catalog.ListMarkets(), s.relatedThreshold)
	if !ok {
		return nil, nil
	}
	return &rel, nil
}

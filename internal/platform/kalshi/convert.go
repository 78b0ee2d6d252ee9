package kalshi

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/shopspring/decimal"
)

// Outcome ids of every Kalshi binary market.
const (
	OutcomeYes = "yes"
	OutcomeNo  = "no"
)

var cents = decimal.NewFromInt(100)

// ToDomainMarkets converts an event's nested markets into catalog markets.
func (e KalshiEvent) ToDomainMarkets() []domain.Market {
	out := make([]domain.Market, 0, len(e.Markets))
	for _, m := range e.Markets {
		if m.Ticker == "" {
			continue
		}
		out = append(out, m.ToDomain(e))
	}
	return out
}

// ToDomain converts one market of event e into a catalog market.
func (m KalshiMarket) ToDomain(e KalshiEvent) domain.Market {
	title := m.Title
	if title == "" {
		title = e.Title
	}
	desc := m.RulesPrimary
	if desc == "" {
		desc = e.SubTitle
	}
	sector := e.Category
	if sector == "" {
		sector = m.Category
	}

	var tags []string
	for _, t := range []string{sector, e.SeriesTicker} {
		if t != "" && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}

	yesName, noName := "Yes", "No"
	if m.YesSubTitle != "" {
		yesName = m.YesSubTitle
	}
	if m.NoSubTitle != "" {
		noName = m.NoSubTitle
	}

	return domain.Market{
		ID:          m.Ticker,
		Title:       title,
		Description: desc,
		Sector:      sector,
		Tags:        tags,
		Source:      domain.SourceKalshi,
		Outcomes: []domain.Outcome{
			{ID: OutcomeYes, Name: yesName},
			{ID: OutcomeNo, Name: noName},
		},
	}
}

// MatchesText reports whether text occurs in the event or any nested market
// title, case-insensitively.
func (m KalshiMarket) MatchesText(e KalshiEvent, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	for _, s := range []string{e.Title, m.Title, m.YesSubTitle} {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// ToOrderBook converts resting bids into a book for one side. Bids come from
// the same side's levels; asks are implied by the opposite side's bids at
// 100 minus their price.
func (ob KalshiOrderbook) ToOrderBook(ticker, outcomeID string, ts time.Time) (domain.OrderBook, error) {
	var same, opposite [][]int64
	switch outcomeID {
	case OutcomeYes:
		same, opposite = ob.Yes, ob.No
	case OutcomeNo:
		same, opposite = ob.No, ob.Yes
	default:
		return domain.OrderBook{}, fmt.Errorf("kalshi: unknown outcome %q for %s", outcomeID, ticker)
	}

	book := domain.OrderBook{
		MarketID:  ticker,
		OutcomeID: outcomeID,
		Bids:      make([]domain.PriceLevel, 0, len(same)),
		Asks:      make([]domain.PriceLevel, 0, len(opposite)),
		Timestamp: ts,
	}
	for _, lvl := range same {
		if len(lvl) < 2 {
			continue
		}
		book.Bids = append(book.Bids, domain.PriceLevel{
			Price: decimal.NewFromInt(lvl[0]).Div(cents),
			Size:  decimal.NewFromInt(lvl[1]),
		})
	}
	for _, lvl := range opposite {
		if len(lvl) < 2 {
			continue
		}
		book.Asks = append(book.Asks, domain.PriceLevel{
			Price: decimal.NewFromInt(100 - lvl[0]).Div(cents),
			Size:  decimal.NewFromInt(lvl[1]),
		})
	}

	slices.SortFunc(book.Bids, func(a, b domain.PriceLevel) int { return b.Price.Cmp(a.Price) })
	slices.SortFunc(book.Asks, func(a, b domain.PriceLevel) int { return a.Price.Cmp(b.Price) })
	return book, nil
}

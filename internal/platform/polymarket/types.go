package polymarket

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/shopspring/decimal"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is a tag on a Gamma event.
type APITag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// APIEvent is the parent event embedded in a Gamma market.
type APIEvent struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Slug     string   `json:"slug"`
	Category string   `json:"category"`
	Tags     []APITag `json:"tags"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID           string     `json:"id"`
	Question     string     `json:"question"`
	ConditionID  string     `json:"conditionId"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Active       flexBool   `json:"active"`
	Closed       flexBool   `json:"closed"`
	Outcomes     string     `json:"outcomes"`     // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	ClobTokenIDs string     `json:"clobTokenIds"` // JSON-encoded: e.g. "[\"123\",\"456\"]"
	Events       []APIEvent `json:"events"`
}

// decodeStringArray parses the JSON-in-a-string arrays Gamma uses for
// outcomes and token ids. Malformed input yields nil.
func decodeStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. Outcome ids
// are CLOB token ids, which the order book endpoint is keyed by. The boolean
// is false when the market has no usable outcomes.
func (m *APIMarket) ToDomainMarket() (domain.Market, bool) {
	names := decodeStringArray(m.Outcomes)
	tokens := decodeStringArray(m.ClobTokenIDs)
	if m.ID == "" || len(tokens) == 0 {
		return domain.Market{}, false
	}

	outcomes := make([]domain.Outcome, 0, len(tokens))
	for i, tok := range tokens {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		outcomes = append(outcomes, domain.Outcome{ID: tok, Name: name})
	}

	sector := m.Category
	var tags []string
	for _, ev := range m.Events {
		if sector == "" {
			sector = ev.Category
		}
		for _, t := range ev.Tags {
			if t.Label != "" && !slices.Contains(tags, t.Label) {
				tags = append(tags, t.Label)
			}
		}
	}

	return domain.Market{
		ID:          m.ID,
		Title:       m.Question,
		Description: m.Description,
		Sector:      sector,
		Tags:        tags,
		Source:      domain.SourcePolymarket,
		Outcomes:    outcomes,
	}, true
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIPriceLevel is a single bid/ask level with decimal strings.
type APIPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the response of GET /book.
type APIBook struct {
	Market    string          `json:"market"`
	AssetID   string          `json:"asset_id"`
	Timestamp string          `json:"timestamp"`
	Hash      string          `json:"hash"`
	Bids      []APIPriceLevel `json:"bids"`
	Asks      []APIPriceLevel `json:"asks"`
}

// ToOrderBook converts a CLOB book into a domain book for the given market
// and outcome. Bids are sorted descending and asks ascending; unparsable
// levels are skipped.
func (b *APIBook) ToOrderBook(marketID, outcomeID string, now time.Time) domain.OrderBook {
	book := domain.OrderBook{
		MarketID:  marketID,
		OutcomeID: outcomeID,
		Bids:      parseLevels(b.Bids),
		Asks:      parseLevels(b.Asks),
		Timestamp: parseTimestamp(b.Timestamp, now),
	}
	slices.SortFunc(book.Bids, func(x, y domain.PriceLevel) int { return y.Price.Cmp(x.Price) })
	slices.SortFunc(book.Asks, func(x, y domain.PriceLevel) int { return x.Price.Cmp(y.Price) })
	return book
}

func parseLevels(levels []APIPriceLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		p, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		s, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out
}

// parseTimestamp accepts unix milliseconds (what the CLOB sends), unix
// seconds or RFC 3339.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if n, err := decimal.NewFromString(s); err == nil {
		v := n.IntPart()
		if v > 1e12 {
			return time.UnixMilli(v)
		}
		return time.Unix(v, 0)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return fallback
}

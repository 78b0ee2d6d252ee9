package domain

// Source identifies the upstream venue a market was loaded from.
type Source string

const (
	SourcePolymarket Source = "polymarket"
	SourceKalshi     Source = "kalshi"
)

// KnownSources lists every venue the facet counts always report.
var KnownSources = []Source{SourcePolymarket, SourceKalshi}

// Outcome is one tradable side of a market.
type Outcome struct {
	ID   string `json:"outcome_id"`
	Name string `json:"name"`
}

// Market is a prediction market question with its outcomes.
type Market struct {
	ID          string    `json:"market_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Sector      string    `json:"sector"`
	Tags        []string  `json:"tags"`
	Source      Source    `json:"source"`
	Outcomes    []Outcome `json:"outcomes"`
}

// FirstOutcomeID returns the id of the first outcome, or "" when the market
// has none.
func (m Market) FirstOutcomeID() string {
	if len(m.Outcomes) == 0 {
		return ""
	}
	return m.Outcomes[0].ID
}

// HasOutcome reports whether outcomeID belongs to the market.
func (m Market) HasOutcome(outcomeID string) bool {
	for _, o := range m.Outcomes {
		if o.ID == outcomeID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can't alias catalog-owned slices.
func (m Market) Clone() Market {
	c := m
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	if m.Outcomes != nil {
		c.Outcomes = append([]Outcome(nil), m.Outcomes...)
	}
	return c
}

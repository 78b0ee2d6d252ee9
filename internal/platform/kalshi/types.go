package kalshi

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiEvent is an event as returned by GET /events. Markets is only
// populated when the request sets with_nested_markets=true.
type KalshiEvent struct {
	EventTicker  string         `json:"event_ticker"`
	SeriesTicker string         `json:"series_ticker"`
	Title        string         `json:"title"`
	SubTitle     string         `json:"sub_title"`
	Category     string         `json:"category"`
	Status       string         `json:"status"`
	Markets      []KalshiMarket `json:"markets"`
}

// KalshiMarket is a single binary market within an event.
type KalshiMarket struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	YesSubTitle  string `json:"yes_sub_title"`
	NoSubTitle   string `json:"no_sub_title"`
	Status       string `json:"status"` // "active", "open", "closed", "settled"
	Category     string `json:"category"`
	RulesPrimary string `json:"rules_primary"`
	YesBid       int64  `json:"yes_bid"`
	YesAsk       int64  `json:"yes_ask"`
	LastPrice    int64  `json:"last_price"`
	Volume       int64  `json:"volume"`
	CloseTime    string `json:"close_time"`
}

// KalshiEventsPage is one page of GET /events.
type KalshiEventsPage struct {
	Events []KalshiEvent `json:"events"`
	Cursor string        `json:"cursor"`
}

// KalshiOrderbook holds resting bids for both sides of a market. Each level
// is a [price_cents, quantity] pair, sorted ascending by price.
type KalshiOrderbook struct {
	Yes [][]int64 `json:"yes"`
	No  [][]int64 `json:"no"`
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// EventsParams filters GET /events.
type EventsParams struct {
	Status       string // "open", "closed", "settled"
	SeriesTicker string
	Cursor       string
	Limit        int
	// WithMarkets asks the API to embed each event's markets.
	WithMarkets bool
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventMarketUpdate is the type tag of a live quote update.
const EventMarketUpdate = "market_update"

// MarketEvent is the payload pushed to socket subscribers of a market.
type MarketEvent struct {
	Type      string           `json:"type"`
	MarketID  string           `json:"market_id,omitempty"`
	OutcomeID string           `json:"outcome_id,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	BestBid   *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk   *decimal.Decimal `json:"best_ask,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

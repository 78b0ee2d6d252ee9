package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotePoint is one historical price observation for a market outcome.
type QuotePoint struct {
	MarketID  string          `json:"market_id"`
	OutcomeID string          `json:"outcome_id"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

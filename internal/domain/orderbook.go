package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+size entry in an order book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBook is the latest bid/ask snapshot for one market outcome.
type OrderBook struct {
	MarketID  string       `json:"market_id"`
	OutcomeID string       `json:"outcome_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the highest bid, assuming bids are sorted descending.
func (b OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.Bids) == 0 {
		return decimal.Zero, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest ask, assuming asks are sorted ascending.
func (b OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	return b.Asks[0].Price, true
}

// MidPrice returns the midpoint of the best bid and ask. With only one side
// present it returns that side's best price.
func (b OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	switch {
	case hasBid && hasAsk:
		return bid.Add(ask).Div(decimal.NewFromInt(2)), true
	case hasBid:
		return bid, true
	case hasAsk:
		return ask, true
	}
	return decimal.Zero, false
}

// Clone returns a copy that does not share level slices.
func (b OrderBook) Clone() OrderBook {
	c := b
	c.Bids = append([]PriceLevel(nil), b.Bids...)
	c.Asks = append([]PriceLevel(nil), b.Asks...)
	return c
}

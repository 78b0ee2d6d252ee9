// Package catalog holds the set of known markets together with their quote
// history and latest order books.
package catalog

import (
	"sync"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// DefaultHistoryLimit caps the number of quote points kept per outcome.
const DefaultHistoryLimit = 500

type outcomeKey struct {
	marketID  string
	outcomeID string
}

// Memory is an in-process catalog. Markets are listed in first-insertion
// order; an upsert of an existing id replaces it in place.
type Memory struct {
	mu           sync.RWMutex
	order        []string
	markets      map[string]domain.Market
	history      map[outcomeKey][]domain.QuotePoint
	books        map[outcomeKey]domain.OrderBook
	historyLimit int
}

// NewMemory creates an empty catalog. A non-positive historyLimit falls back
// to DefaultHistoryLimit.
func NewMemory(historyLimit int) *Memory {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Memory{
		markets:      make(map[string]domain.Market),
		history:      make(map[outcomeKey][]domain.QuotePoint),
		books:        make(map[outcomeKey]domain.OrderBook),
		historyLimit: historyLimit,
	}
}

// ListMarkets returns a copy of every market in catalog order.
func (c *Memory) ListMarkets() []domain.Market {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Market, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.markets[id].Clone())
	}
	return out
}

// GetMarket returns the market with the given id.
func (c *Memory) GetMarket(id string) (domain.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, false
	}
	return m.Clone(), true
}

// Len returns the number of markets in the catalog.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// GetHistory returns the recorded quotes for one outcome, oldest first. The
// returned slice is safe to mutate.
func (c *Memory) GetHistory(marketID, outcomeID string) []domain.QuotePoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	src := c.history[outcomeKey{marketID, outcomeID}]
	if len(src) == 0 {
		return nil
	}
	out := make([]domain.QuotePoint, len(src))
	copy(out, src)
	return out
}

// GetOrderbook returns the latest order book for one outcome.
func (c *Memory) GetOrderbook(marketID, outcomeID string) (domain.OrderBook, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.books[outcomeKey{marketID, outcomeID}]
	if !ok {
		return domain.OrderBook{}, false
	}
	return b.Clone(), true
}

// UpsertMarkets inserts new markets at the end of the catalog order and
// replaces existing ones in place. Markets without an id are skipped.
func (c *Memory) UpsertMarkets(markets []domain.Market) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range markets {
		if m.ID == "" {
			continue
		}
		if _, exists := c.markets[m.ID]; !exists {
			c.order = append(c.order, m.ID)
		}
		c.markets[m.ID] = m.Clone()
	}
}

// AppendQuote records a quote and drops the oldest points past the history
// limit.
func (c *Memory) AppendQuote(q domain.QuotePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := outcomeKey{q.MarketID, q.OutcomeID}
	pts := append(c.history[k], q)
	if over := len(pts) - c.historyLimit; over > 0 {
		pts = append([]domain.QuotePoint(nil), pts[over:]...)
	}
	c.history[k] = pts
}

// SetOrderbook replaces the latest order book for the book's outcome.
func (c *Memory) SetOrderbook(b domain.OrderBook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[outcomeKey{b.MarketID, b.OutcomeID}] = b.Clone()
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// bookTTL expires books that stop being refreshed.
const bookTTL = 10 * time.Minute

// OrderbookCache implements domain.OrderbookCache with sorted sets and
// hashes per market outcome.
//
// Key schema (after the client prefix):
//
//	book:{market}:{outcome}:bids      sorted set of bid prices (score = price)
//	book:{market}:{outcome}:asks      sorted set of ask prices (score = price)
//	book:{market}:{outcome}:bid:size  hash price -> size
//	book:{market}:{outcome}:ask:size  hash price -> size
//	book:{market}:{outcome}:meta      hash with "ts" (unix nanos)
type OrderbookCache struct {
	c *Client
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{c: c}
}

type bookKeys struct {
	bids, asks, bidSize, askSize, meta string
}

func (oc *OrderbookCache) keys(marketID, outcomeID string) bookKeys {
	base := oc.c.key("book:", marketID, ":", outcomeID)
	return bookKeys{
		bids:    base + ":bids",
		asks:    base + ":asks",
		bidSize: base + ":bid:size",
		askSize: base + ":ask:size",
		meta:    base + ":meta",
	}
}

// SetBook atomically replaces the stored book.
func (oc *OrderbookCache) SetBook(ctx context.Context, book domain.OrderBook) error {
	k := oc.keys(book.MarketID, book.OutcomeID)

	pipe := oc.c.rdb.TxPipeline()
	pipe.Del(ctx, k.bids, k.asks, k.bidSize, k.askSize, k.meta)

	for _, lvl := range book.Bids {
		price := lvl.Price.String()
		pipe.ZAdd(ctx, k.bids, redis.Z{Score: lvl.Price.InexactFloat64(), Member: price})
		pipe.HSet(ctx, k.bidSize, price, lvl.Size.String())
	}
	for _, lvl := range book.Asks {
		price := lvl.Price.String()
		pipe.ZAdd(ctx, k.asks, redis.Z{Score: lvl.Price.InexactFloat64(), Member: price})
		pipe.HSet(ctx, k.askSize, price, lvl.Size.String())
	}
	pipe.HSet(ctx, k.meta, "ts", strconv.FormatInt(book.Timestamp.UnixNano(), 10))

	for _, key := range []string{k.bids, k.asks, k.bidSize, k.askSize, k.meta} {
		pipe.Expire(ctx, key, bookTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set orderbook %s/%s: %w", book.MarketID, book.OutcomeID, err)
	}
	return nil
}

// GetBook reads the stored book with bids descending and asks ascending. It
// returns domain.ErrNotFound when nothing is stored.
func (oc *OrderbookCache) GetBook(ctx context.Context, marketID, outcomeID string) (domain.OrderBook, error) {
	k := oc.keys(marketID, outcomeID)

	pipe := oc.c.rdb.Pipeline()
	bidsCmd := pipe.ZRevRangeWithScores(ctx, k.bids, 0, -1)
	asksCmd := pipe.ZRangeWithScores(ctx, k.asks, 0, -1)
	bidSizeCmd := pipe.HGetAll(ctx, k.bidSize)
	askSizeCmd := pipe.HGetAll(ctx, k.askSize)
	metaCmd := pipe.HGetAll(ctx, k.meta)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.OrderBook{}, fmt.Errorf("redis: get orderbook %s/%s: %w", marketID, outcomeID, err)
	}

	meta := metaCmd.Val()
	tsRaw, ok := meta["ts"]
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
	}

	book := domain.OrderBook{MarketID: marketID, OutcomeID: outcomeID}
	if ns, err := strconv.ParseInt(tsRaw, 10, 64); err == nil {
		book.Timestamp = time.Unix(0, ns).UTC()
	}

	var err error
	if book.Bids, err = levels(bidsCmd.Val(), bidSizeCmd.Val()); err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: get orderbook %s/%s: %w", marketID, outcomeID, err)
	}
	if book.Asks, err = levels(asksCmd.Val(), askSizeCmd.Val()); err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: get orderbook %s/%s: %w", marketID, outcomeID, err)
	}
	return book, nil
}

func levels(prices []redis.Z, sizes map[string]string) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(prices))
	for _, z := range prices {
		member, _ := z.Member.(string)
		price, err := decimal.NewFromString(member)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", member, err)
		}
		size, err := decimal.NewFromString(sizes[member])
		if err != nil {
			return nil, fmt.Errorf("parse size for %s: %w", member, err)
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}

var _ domain.OrderbookCache = (*OrderbookCache)(nil)

package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *pgxpool.Pool
}

// NewQuoteStore creates a new QuoteStore backed by the given connection pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// Insert appends one quote point.
func (s *QuoteStore) Insert(ctx context.Context, q domain.QuotePoint) error {
	const query = `
		INSERT INTO quotes (market_id, outcome_id, price, ts)
		VALUES ($1, $2, $3::text::numeric, $4)`

	if _, err := s.pool.Exec(ctx, query, q.MarketID, q.OutcomeID, q.Price.String(), q.Timestamp); err != nil {
		return fmt.Errorf("postgres: insert quote %s/%s: %w", q.MarketID, q.OutcomeID, err)
	}
	return nil
}

// ListRecent returns up to limit of the newest quotes for one outcome,
// oldest first.
func (s *QuoteStore) ListRecent(ctx context.Context, marketID, outcomeID string, limit int) ([]domain.QuotePoint, error) {
	const query = `
		SELECT price::text, ts FROM quotes
		WHERE market_id = $1 AND outcome_id = $2
		ORDER BY ts DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, marketID, outcomeID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list quotes %s/%s: %w", marketID, outcomeID, err)
	}
	defer rows.Close()

	var out []domain.QuotePoint
	for rows.Next() {
		var (
			price string
			ts    time.Time
		)
		if err := rows.Scan(&price, &ts); err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse quote price %q: %w", price, err)
		}
		out = append(out, domain.QuotePoint{
			MarketID:  marketID,
			OutcomeID: outcomeID,
			Price:     p,
			Timestamp: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list quotes %s/%s: %w", marketID, outcomeID, err)
	}

	slices.Reverse(out)
	return out, nil
}

var _ domain.QuoteStore = (*QuoteStore)(nil)

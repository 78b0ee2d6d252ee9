package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarketSQL = `
	INSERT INTO markets (
		id, title, description, sector, tags, source, outcomes, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		title       = EXCLUDED.title,
		description = EXCLUDED.description,
		sector      = EXCLUDED.sector,
		tags        = EXCLUDED.tags,
		source      = EXCLUDED.source,
		outcomes    = EXCLUDED.outcomes,
		updated_at  = NOW()`

const marketCols = `id, title, description, sector, tags, source, outcomes`

// UpsertBatch inserts or updates markets in one round trip. first_seen is
// kept from the original insert so catalog order survives restarts.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		outcomes, err := encodeOutcomes(m.Outcomes)
		if err != nil {
			return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
		}
		tags := m.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(upsertMarketSQL,
			m.ID, m.Title, m.Description, m.Sector, tags, string(m.Source), outcomes,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListAll returns every market in first-seen order.
func (s *MarketStore) ListAll(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+marketCols+` FROM markets ORDER BY first_seen, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	return markets, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m        domain.Market
		source   string
		outcomes []byte
	)
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Sector, &m.Tags, &source, &outcomes); err != nil {
		return domain.Market{}, err
	}
	m.Source = domain.Source(source)

	var err error
	if m.Outcomes, err = decodeOutcomes(outcomes); err != nil {
		return domain.Market{}, fmt.Errorf("decode outcomes for %s: %w", m.ID, err)
	}
	return m, nil
}

func encodeOutcomes(outcomes []domain.Outcome) ([]byte, error) {
	if outcomes == nil {
		outcomes = []domain.Outcome{}
	}
	return json.Marshal(outcomes)
}

func decodeOutcomes(data []byte) ([]domain.Outcome, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []domain.Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)

// Package search ranks, paginates and facets the market catalog for a
// free-text query.
package search

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

const (
	DefaultFacetTagLimit = 20
	DefaultOnDemandWait  = 5 * time.Second
	facetTagsPerMarket   = 3
	scoreTitleContains   = 10
	scoreTitlePrefix     = 5
	scoreDescription     = 3
	scoreTag             = 2
	scoreOutcomeName     = 1
)

// Config tunes the engine.
type Config struct {
	// OnDemandSource is the venue whose fetcher is warmed before a text query.
	OnDemandSource  domain.Source
	// OnDemandTimeout bounds how long a search waits for the remote fetch.
	OnDemandTimeout time.Duration
	FacetTagLimit   int
}

// Engine answers catalog searches. It is safe for concurrent use.
type Engine struct {
	catalog  domain.Catalog
	fetcher  domain.RemoteFetcher
	cfg      Config
	inflight singleflight.Group
	logger   *slog.Logger
}

// NewEngine creates an Engine over catalog. fetcher may be nil, which
// disables on-demand warming.
func NewEngine(catalog domain.Catalog, fetcher domain.RemoteFetcher, cfg Config, logger *slog.Logger) *Engine {
	if cfg.OnDemandSource == "" {
		cfg.OnDemandSource = domain.SourceKalshi
	}
	if cfg.OnDemandTimeout <= 0 {
		cfg.OnDemandTimeout = DefaultOnDemandWait
	}
	if cfg.FacetTagLimit <= 0 {
		cfg.FacetTagLimit = DefaultFacetTagLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog: catalog,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "search")),
	}
}

// Search filters, scores and paginates the catalog for q. Facets always
// describe the whole catalog. Remote fetch failures never fail a search.
func (e *Engine) Search(ctx context.Context, q domain.SearchQuery) domain.SearchResult {
	if q.Text != "" && (q.Source == "" || q.Source == e.cfg.OnDemandSource) {
		e.warm(ctx, q.Text)
	}

	all := e.catalog.ListMarkets()
	matched := filter(all, q)
	if q.Text != "" {
		matched = rank(matched, q.Text)
	}

	return domain.SearchResult{
		Markets: paginate(matched, q.Offset, q.Limit),
		Total:   len(matched),
		Facets:  facets(all, e.cfg.FacetTagLimit),
	}
}

// warm runs the on-demand fetch for text, sharing one remote call between
// concurrent searches for the same normalised text. The caller waits at most
// OnDemandTimeout.
func (e *Engine) warm(ctx context.Context, text string) {
	if e.fetcher == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(text))
	if key == "" {
		return
	}

	ch := e.inflight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.OnDemandTimeout)
		defer cancel()
		return nil, e.fetcher.SearchMarkets(fctx, text)
	})

	timer := time.NewTimer(e.cfg.OnDemandTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			e.logger.Warn("on-demand fetch failed",
				slog.String("query", text),
				slog.String("error", res.Err.Error()),
			)
		}
	case <-timer.C:
		e.logger.Warn("on-demand fetch timed out",
			slog.String("query", text),
			slog.Duration("timeout", e.cfg.OnDemandTimeout),
		)
	case <-ctx.Done():
	}
}

func filter(markets []domain.Market, q domain.SearchQuery) []domain.Market {
	var wantTags map[string]struct{}
	if len(q.Tags) > 0 {
		wantTags = make(map[string]struct{}, len(q.Tags))
		for _, t := range q.Tags {
			wantTags[strings.ToLower(t)] = struct{}{}
		}
	}

	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if q.Source != "" && m.Source != q.Source {
			continue
		}
		if q.Sector != "" && m.Sector != q.Sector {
			continue
		}
		if wantTags != nil && !hasAnyTag(m.Tags, wantTags) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hasAnyTag(tags []string, want map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := want[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

// Score returns the relevance of m for text. Zero means no match.
func Score(m domain.Market, text string) int {
	needle := strings.ToLower(text)
	score := 0

	title := strings.ToLower(m.Title)
	if strings.Contains(title, needle) {
		score += scoreTitleContains
		if strings.HasPrefix(title, needle) {
			score += scoreTitlePrefix
		}
	}
	if m.Description != "" && strings.Contains(strings.ToLower(m.Description), needle) {
		score += scoreDescription
	}
	for _, t := range m.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			score += scoreTag
			break
		}
	}
	for _, o := range m.Outcomes {
		if strings.Contains(strings.ToLower(o.Name), needle) {
			score += scoreOutcomeName
			break
		}
	}
	return score
}

// rank drops zero-score markets and stable-sorts the rest by score.
func rank(markets []domain.Market, text string) []domain.Market {
	scored := make([]domain.ScoredMarket, 0, len(markets))
	for _, m := range markets {
		if s := Score(m, text); s > 0 {
			scored = append(scored, domain.ScoredMarket{Market: m, Score: s})
		}
	}
	slices.SortStableFunc(scored, func(a, b domain.ScoredMarket) int {
		return b.Score - a.Score
	})

	out := make([]domain.Market, len(scored))
	for i, s := range scored {
		out[i] = s.Market
	}
	return out
}

func paginate(markets []domain.Market, offset, limit int) []domain.Market {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(markets) {
		return []domain.Market{}
	}
	end := min(offset+limit, len(markets))
	return markets[offset:end]
}

func facets(markets []domain.Market, tagLimit int) domain.Facets {
	f := domain.Facets{
		Sectors: make(map[string]int),
		Sources: make(map[string]int, len(domain.KnownSources)),
	}
	for _, s := range domain.KnownSources {
		f.Sources[string(s)] = 0
	}

	counts := make(map[string]int)
	var seen []string
	for _, m := range markets {
		if m.Sector != "" {
			f.Sectors[m.Sector]++
		}
		if m.Source != "" {
			f.Sources[string(m.Source)]++
		}
		for _, t := range m.Tags[:min(len(m.Tags), facetTagsPerMarket)] {
			if _, ok := counts[t]; !ok {
				seen = append(seen, t)
			}
			counts[t]++
		}
	}

	tags := make([]domain.TagCount, len(seen))
	for i, t := range seen {
		tags[i] = domain.TagCount{Tag: t, Count: counts[t]}
	}
	// Stable on first-seen order for equal counts.
	slices.SortStableFunc(tags, func(a, b domain.TagCount) int {
		return b.Count - a.Count
	})
	if len(tags) > tagLimit {
		tags = tags[:tagLimit]
	}
	f.Tags = tags
	return f
}

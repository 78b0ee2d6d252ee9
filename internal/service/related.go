package service

import (
	"strings"
	"unicode"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// DefaultRelatedThreshold is the minimum title similarity for a related match.
const DefaultRelatedThreshold = 0.25

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "be": {}, "by": {}, "for": {},
	"in": {}, "is": {}, "of": {}, "on": {}, "or": {}, "the": {}, "to": {},
	"will": {}, "with": {},
}

// titleTokens lower-cases s, splits it on anything that is not a letter or
// digit and drops stopwords.
func titleTokens(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

// jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both are empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// FindRelated returns the market from a different source whose title is
// most similar to m's. Candidates scoring below threshold are ignored and
// ties keep the earliest candidate.
func FindRelated(m domain.Market, candidates []domain.Market, threshold float64) (domain.Market, bool) {
	want := titleTokens(m.Title)
	if len(want) == 0 {
		return domain.Market{}, false
	}

	var (
		best      domain.Market
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		if c.Source == m.Source || c.ID == m.ID {
			continue
		}
		score := jaccard(want, titleTokens(c.Title))
		if score < threshold {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}

package domain

// SearchQuery holds the inputs of a catalog search. Empty fields apply no
// filter.
type SearchQuery struct {
	Text   string
	Sector string
	Tags   []string
	Source Source
	Limit  int
	Offset int
}

// ScoredMarket pairs a market with its relevance score. The score is not
// serialized in responses.
type ScoredMarket struct {
	Market Market
	Score  int
}

// TagCount is one entry of the tag facet.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Facets summarises the full catalog, independent of the query filters.
type Facets struct {
	Sectors map[string]int `json:"sectors"`
	Sources map[string]int `json:"sources"`
	Tags    []TagCount     `json:"tags"`
}

// SearchResult is the response of a catalog search.
type SearchResult struct {
	Markets []Market `json:"markets"`
	Total   int      `json:"total"`
	Facets  Facets   `json:"facets"`
}

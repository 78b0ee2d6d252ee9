package polymarket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/shopspring/decimal"
)

const gammaPage = `[
	{
		"id": "501",
		"question": "Will BTC close above 100k?",
		"description": "Resolves on the daily close.",
		"outcomes": "[\"Yes\",\"No\"]",
		"clobTokenIds": "[\"111\",\"222\"]",
		"active": "true",
		"closed": false,
		"events": [{
			"id": "9",
			"category": "Crypto",
			"tags": [{"label": "Crypto"}, {"label": "Bitcoin"}, {"label": "Crypto"}]
		}]
	},
	{
		"id": "502",
		"question": "No tokens yet",
		"outcomes": "[\"Yes\",\"No\"]",
		"clobTokenIds": ""
	}
]`

func TestGammaGetMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("path = %q, want /markets", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("active") != "true" || q.Get("closed") != "false" {
			t.Errorf("active/closed = %q/%q", q.Get("active"), q.Get("closed"))
		}
		if q.Get("limit") != "100" || q.Get("offset") != "200" {
			t.Errorf("limit/offset = %q/%q", q.Get("limit"), q.Get("offset"))
		}
		w.Write([]byte(gammaPage))
	}))
	defer server.Close()

	g := NewGammaClient(server.URL)
	markets, raw, err := g.GetMarkets(context.Background(), 100, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != 2 {
		t.Errorf("raw = %d, want 2", raw)
	}
	if len(markets) != 1 {
		t.Fatalf("len(markets) = %d, want 1", len(markets))
	}

	m := markets[0]
	if m.ID != "501" || m.Source != domain.SourcePolymarket {
		t.Errorf("market = %+v", m)
	}
	if m.Title != "Will BTC close above 100k?" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.Sector != "Crypto" {
		t.Errorf("Sector = %q, want Crypto", m.Sector)
	}
	if len(m.Tags) != 2 || m.Tags[0] != "Crypto" || m.Tags[1] != "Bitcoin" {
		t.Errorf("Tags = %v, want [Crypto Bitcoin]", m.Tags)
	}
	want := []domain.Outcome{{ID: "111", Name: "Yes"}, {ID: "222", Name: "No"}}
	if len(m.Outcomes) != 2 || m.Outcomes[0] != want[0] || m.Outcomes[1] != want[1] {
		t.Errorf("Outcomes = %+v, want %+v", m.Outcomes, want)
	}
}

func TestGammaGetMarketsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	_, _, err := NewGammaClient(server.URL).GetMarkets(context.Background(), 10, 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClobGetBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/book" {
			t.Errorf("path = %q, want /book", r.URL.Path)
		}
		if r.URL.Query().Get("token_id") != "111" {
			t.Errorf("token_id = %q, want 111", r.URL.Query().Get("token_id"))
		}
		w.Write([]byte(`{
			"market": "0xabc",
			"asset_id": "111",
			"timestamp": "1700000000123",
			"bids": [{"price": "0.40", "size": "10"}, {"price": "0.45", "size": "5"}, {"price": "bad", "size": "1"}],
			"asks": [{"price": "0.60", "size": "2"}, {"price": "0.55", "size": "8"}]
		}`))
	}))
	defer server.Close()

	c := NewClobClient(server.URL)
	raw, err := c.GetBook(context.Background(), "111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	book := raw.ToOrderBook("501", "111", time.Time{})
	if book.MarketID != "501" || book.OutcomeID != "111" {
		t.Errorf("book ids = %s/%s", book.MarketID, book.OutcomeID)
	}
	if len(book.Bids) != 2 {
		t.Fatalf("len(Bids) = %d, want 2", len(book.Bids))
	}
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	if !bid.Equal(decimal.RequireFromString("0.45")) {
		t.Errorf("best bid = %s, want 0.45", bid)
	}
	if !ask.Equal(decimal.RequireFromString("0.55")) {
		t.Errorf("best ask = %s, want 0.55", ask)
	}
	if !book.Timestamp.Equal(time.UnixMilli(1700000000123)) {
		t.Errorf("Timestamp = %v", book.Timestamp)
	}
}

func TestCheckHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
	}
	for _, tt := range tests {
		if err := checkHTTPStatus(tt.code, nil); !errors.Is(err, tt.want) {
			t.Errorf("checkHTTPStatus(%d) = %v, want %v", tt.code, err, tt.want)
		}
	}
	if err := checkHTTPStatus(http.StatusOK, nil); err != nil {
		t.Errorf("checkHTTPStatus(200) = %v, want nil", err)
	}
	if err := checkHTTPStatus(http.StatusInternalServerError, nil); err == nil {
		t.Error("checkHTTPStatus(500) = nil, want error")
	}
}

func TestParseTimestamp(t *testing.T) {
	fallback := time.Unix(42, 0)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", fallback},
		{"1700000000", time.Unix(1700000000, 0)},
		{"1700000000123", time.UnixMilli(1700000000123)},
		{"2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"garbage", fallback},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.in, fallback); !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

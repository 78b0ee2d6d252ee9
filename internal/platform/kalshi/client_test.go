package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/shopspring/decimal"
)

func TestNewClient(t *testing.T) {
	t.Run("default base url", func(t *testing.T) {
		c := NewClient("", "")
		if c.baseURL != DefaultBaseURL {
			t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", c.httpClient.Timeout)
		}
	})

	t.Run("trailing slash trimmed", func(t *testing.T) {
		c := NewClient("https://api.example.com/v2/", "")
		if c.baseURL != "https://api.example.com/v2" {
			t.Errorf("baseURL = %q", c.baseURL)
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		c := NewClient("https://api.example.com", "", WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", c.httpClient.Timeout)
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		hc := &http.Client{Timeout: time.Second}
		c := NewClient("https://api.example.com", "", WithHTTPClient(hc))
		if c.httpClient != hc {
			t.Error("custom HTTP client not set")
		}
	})
}

func TestGetEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("path = %q, want /events", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("with_nested_markets") != "true" {
			t.Errorf("with_nested_markets = %q, want true", q.Get("with_nested_markets"))
		}
		if q.Get("status") != "open" {
			t.Errorf("status = %q, want open", q.Get("status"))
		}
		if q.Get("cursor") != "c1" {
			t.Errorf("cursor = %q, want c1", q.Get("cursor"))
		}
		if r.Header.Get("KALSHI-ACCESS-KEY") != "" {
			t.Error("unsigned client sent auth headers")
		}
		w.Write([]byte(`{
			"cursor": "c2",
			"events": [{
				"event_ticker": "KXFED-26",
				"series_ticker": "KXFED",
				"title": "Fed rate decision",
				"category": "Economics",
				"markets": [
					{"ticker": "KXFED-26-CUT", "title": "Will the Fed cut rates?", "yes_sub_title": "Cut"},
					{"ticker": "", "title": "ignored"}
				]
			}]
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	page, err := c.GetEvents(context.Background(), EventsParams{Status: "open", Cursor: "c1", WithMarkets: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Cursor != "c2" {
		t.Errorf("Cursor = %q, want c2", page.Cursor)
	}
	if len(page.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(page.Events))
	}

	markets := page.Events[0].ToDomainMarkets()
	if len(markets) != 1 {
		t.Fatalf("len(markets) = %d, want 1", len(markets))
	}
	m := markets[0]
	if m.ID != "KXFED-26-CUT" || m.Source != domain.SourceKalshi {
		t.Errorf("market = %+v", m)
	}
	if m.Sector != "Economics" {
		t.Errorf("Sector = %q, want Economics", m.Sector)
	}
	if len(m.Tags) != 2 || m.Tags[0] != "Economics" || m.Tags[1] != "KXFED" {
		t.Errorf("Tags = %v", m.Tags)
	}
	if len(m.Outcomes) != 2 || m.Outcomes[0].ID != OutcomeYes || m.Outcomes[0].Name != "Cut" {
		t.Errorf("Outcomes = %+v", m.Outcomes)
	}
}

func TestGetOrderbook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/KXFED-26-CUT/orderbook" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"orderbook": {"yes": [[40, 10], [42, 5]], "no": [[55, 7], [50, 3]]}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	ob, err := c.GetOrderbook(context.Background(), "KXFED-26-CUT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts := time.Unix(1700000000, 0)
	book, err := ob.ToOrderBook("KXFED-26-CUT", OutcomeYes, ts)
	if err != nil {
		t.Fatalf("ToOrderBook: %v", err)
	}
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	if !bid.Equal(decimal.RequireFromString("0.42")) {
		t.Errorf("best bid = %s, want 0.42", bid)
	}
	if !ask.Equal(decimal.RequireFromString("0.45")) {
		t.Errorf("best ask = %s, want 0.45", ask)
	}
	if !book.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v", book.Timestamp)
	}

	noBook, err := ob.ToOrderBook("KXFED-26-CUT", OutcomeNo, ts)
	if err != nil {
		t.Fatalf("ToOrderBook(no): %v", err)
	}
	noBid, _ := noBook.BestBid()
	noAsk, _ := noBook.BestAsk()
	if !noBid.Equal(decimal.RequireFromString("0.55")) || !noAsk.Equal(decimal.RequireFromString("0.58")) {
		t.Errorf("no side = %s/%s, want 0.55/0.58", noBid, noAsk)
	}

	if _, err := ob.ToOrderBook("KXFED-26-CUT", "maybe", ts); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(`{"error": {"code": "x", "message": "nope"}}`))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "").GetOrderbook(context.Background(), "T")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("server error", func(t *testing.T) {
		if err := checkStatus(http.StatusBadGateway, nil); err == nil {
			t.Error("expected error for 502")
		}
	})
}

func TestSignedRequest(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("KALSHI-ACCESS-KEY") != "key-id" {
			t.Errorf("KALSHI-ACCESS-KEY = %q", r.Header.Get("KALSHI-ACCESS-KEY"))
		}
		ts := r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		sig, err := base64.StdEncoding.DecodeString(r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		if err != nil {
			t.Errorf("decode signature: %v", err)
		}
		hash := sha256.Sum256([]byte(ts + r.Method + r.URL.Path))
		if err := rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, hash[:], sig, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		}); err != nil {
			t.Errorf("signature does not verify: %v", err)
		}
		w.Write([]byte(`{"orderbook": {"yes": [[40, 10]], "no": null}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "key-id")
	if err := c.SetRSAPrivateKey(pemBytes); err != nil {
		t.Fatalf("SetRSAPrivateKey: %v", err)
	}
	ob, err := c.GetOrderbook(context.Background(), "T")
	if err != nil {
		t.Fatalf("GetOrderbook: %v", err)
	}
	if len(ob.Yes) != 1 || ob.Yes[0][0] != 40 {
		t.Errorf("Yes = %v, want [[40 10]]", ob.Yes)
	}

	if err := c.SetRSAPrivateKey([]byte("not pem")); err == nil {
		t.Error("expected error for invalid PEM")
	}
}

func TestMatchesText(t *testing.T) {
	ev := KalshiEvent{Title: "Fed rate decision"}
	m := KalshiMarket{Title: "Will the Fed cut?", YesSubTitle: "25bp cut"}

	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"FED", true},
		{"rate decision", true},
		{"25bp", true},
		{"bitcoin", false},
	}
	for _, tt := range tests {
		if got := m.MatchesText(ev, tt.text); got != tt.want {
			t.Errorf("MatchesText(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

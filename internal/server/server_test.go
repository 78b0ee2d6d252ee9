package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/marketstream/internal/catalog"
	"github.com/alanyoungcy/marketstream/internal/domain"
	"github.com/alanyoungcy/marketstream/internal/search"
	"github.com/alanyoungcy/marketstream/internal/server/handler"
	"github.com/alanyoungcy/marketstream/internal/server/ws"
	"github.com/alanyoungcy/marketstream/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRoutes(t *testing.T) (http.Handler, *ws.Hub) {
	t.Helper()
	logger := testLogger()

	cat := catalog.NewMemory(0)
	cat.UpsertMarkets([]domain.Market{
		{
			ID:     "pm-1",
			Title:  "Fed cuts rates in March",
			Source: domain.SourcePolymarket,
			Outcomes: []domain.Outcome{
				{ID: "tok-y", Name: "Yes"},
				{ID: "tok-n", Name: "No"},
			},
		},
	})

	hub := ws.NewHub(ws.NewRegistry(), nil, ws.Config{}, logger)
	handlers := Handlers{
		Health: handler.NewHealthHandler(),
		Status: handler.NewStatusHandler("api", hub.ClientCount, hub.Registry().Len, cat.Len),
		Markets: handler.NewMarketHandler(
			service.NewMarketService(cat),
			search.NewEngine(cat, nil, search.Config{}, logger),
			0, 0, logger,
		),
	}
	return Routes(Config{}, handlers, hub, nil, logger), hub
}

func TestRoutes(t *testing.T) {
	h, _ := testRoutes(t)

	tests := []struct {
		method string
		target string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/status", http.StatusOK},
		{http.MethodGet, "/markets", http.StatusOK},
		{http.MethodGet, "/markets/search?q=fed", http.StatusOK},
		{http.MethodGet, "/markets/pm-1", http.StatusOK},
		{http.MethodGet, "/markets/pm-1/history", http.StatusOK},
		{http.MethodGet, "/markets/pm-1/history?outcome_id=tok-x", http.StatusBadRequest},
		{http.MethodGet, "/markets/pm-1/orderbook", http.StatusOK},
		{http.MethodGet, "/markets/pm-1/related", http.StatusOK},
		{http.MethodGet, "/markets/missing", http.StatusNotFound},
		{http.MethodGet, "/unknown", http.StatusNotFound},
		{http.MethodPost, "/markets", http.StatusMethodNotAllowed},
		{http.MethodOptions, "/markets", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("Origin", "https://dash.example")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestStatusReportsCatalogSize(t *testing.T) {
	h, _ := testRoutes(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["mode"] != "api" || status["catalog_size"] != float64(1) {
		t.Errorf("status = %v", status)
	}
}

func TestServerServesWebSocket(t *testing.T) {
	logger := testLogger()
	h, hub := testRoutes(t)
	srv := &Server{httpServer: &http.Server{Handler: h}, logger: logger}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	url := "ws://" + ln.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello map[string]string
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello["type"] != "connected" {
		t.Errorf("hello = %v", hello)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", hub.ClientCount())
	}

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("health body = %s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v, want nil", err)
	}
}

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// DefaultEventsChannel is the bus channel carrying market update events.
const DefaultEventsChannel = "market_updates"

// Config tunes socket sessions.
type Config struct {
	// SendBuffer is the number of queued messages per connection before it
	// is treated as a slow consumer.
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	EventsChannel  string
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 4096,
		EventsChannel:  DefaultEventsChannel,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.EventsChannel == "" {
		c.EventsChannel = d.EventsChannel
	}
	return c
}

// pingPeriod must stay below PongWait.
func (c Config) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventHeader is the routing part of a bus event.
type eventHeader struct {
	Type     string `json:"type"`
	MarketID string `json:"market_id"`
}

// Hub tracks open socket sessions and routes bus events to the connections
// subscribed to each market.
type Hub struct {
	registry *Registry
	bus      domain.SignalBus
	cfg      Config
	logger   *slog.Logger

	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

// NewHub creates a Hub. bus may be nil, in which case only direct Publish
// calls reach clients.
func NewHub(registry *Registry, bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		bus:      bus,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "ws")),
		conns:    make(map[*Conn]struct{}),
	}
}

// Registry returns the hub's subscription registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Run pumps events from the bus to subscribers until ctx is cancelled, then
// closes every open connection.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()

	if h.bus == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	msgCh, err := h.bus.Subscribe(ctx, h.cfg.EventsChannel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", h.cfg.EventsChannel),
			slog.String("error", err.Error()),
		)
		return err
	}
	h.logger.Info("ws: subscribed to channel", slog.String("channel", h.cfg.EventsChannel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", h.cfg.EventsChannel),
				)
				return nil
			}
			h.route(data)
		}
	}
}

// route delivers one bus payload. Events naming a market go to its
// subscribers; events without one go to everybody.
func (h *Hub) route(data []byte) {
	var hdr eventHeader
	if err := json.Unmarshal(data, &hdr); err != nil || hdr.Type == "" {
		h.logger.Debug("ws: dropping malformed event", slog.Int("bytes", len(data)))
		return
	}
	if hdr.MarketID == "" {
		h.BroadcastAll(data)
		return
	}
	h.Publish(hdr.MarketID, data)
}

// HandleWS upgrades an HTTP request to a socket session.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := newSession(h, conn)
	s.open()
	s.logger.Info("ws: client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.Int("total_clients", h.ClientCount()),
	)
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) snapshotConns() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

func (h *Hub) closeAll() {
	for _, c := range h.snapshotConns() {
		c.Close()
	}
}

package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// SessionState is the lifecycle stage of a socket session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	opSubscribe   = "subscribe_market"
	opUnsubscribe = "unsubscribe_market"
	opPing        = "ping"
)

// controlMsg is a client request on the socket.
type controlMsg struct {
	Op       string `json:"op"`
	MarketID string `json:"market_id"`
}

// session owns one socket connection. All registry mutations for the
// connection happen on the read goroutine, in the order they arrive.
type session struct {
	hub      *Hub
	ws       *websocket.Conn
	conn     *Conn
	state    atomic.Int32
	teardown sync.Once
	logger   *slog.Logger
}

func newSession(h *Hub, ws *websocket.Conn) *session {
	c := newConn(h.cfg.SendBuffer)
	return &session{
		hub:    h,
		ws:     ws,
		conn:   c,
		logger: h.logger.With(slog.String("conn_id", c.ID().String())),
	}
}

// State returns the current lifecycle stage.
func (s *session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *session) open() {
	s.state.Store(int32(StateOpen))
	s.hub.add(s.conn)

	hello, err := json.Marshal(map[string]any{
		"type":          "connected",
		"connection_id": s.conn.ID().String(),
	})
	if err == nil {
		_ = s.conn.Enqueue(hello)
	}

	go s.writePump()
	go s.readPump()
}

// close moves the session to CLOSED and releases every registry entry for
// the connection. It runs exactly once however the session ends.
func (s *session) close() {
	s.teardown.Do(func() {
		s.state.Store(int32(StateClosed))
		s.conn.Close()
		removed := s.hub.registry.UnsubscribeFromAll(s.conn)
		s.hub.remove(s.conn)
		s.ws.Close()
		s.logger.Info("ws: client disconnected",
			slog.Int("released_subscriptions", removed),
			slog.Int("total_clients", s.hub.ClientCount()),
		)
	})
}

func (s *session) readPump() {
	defer s.close()

	s.ws.SetReadLimit(s.hub.cfg.MaxMessageSize)
	s.ws.SetReadDeadline(time.Now().Add(s.hub.cfg.PongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(s.hub.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}
		s.handle(message)
	}
}

// handle applies one control message. Malformed and unknown messages are
// ignored.
func (s *session) handle(message []byte) {
	if s.State() != StateOpen {
		return
	}
	var msg controlMsg
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Op {
	case opSubscribe:
		if msg.MarketID == "" {
			return
		}
		s.hub.registry.Subscribe(msg.MarketID, s.conn)
		s.logger.Debug("ws: subscribed", slog.String("market_id", msg.MarketID))
	case opUnsubscribe:
		if msg.MarketID == "" {
			return
		}
		s.hub.registry.Unsubscribe(msg.MarketID, s.conn)
		s.logger.Debug("ws: unsubscribed", slog.String("market_id", msg.MarketID))
	case opPing:
		_ = s.conn.Enqueue([]byte(`{"type":"pong"}`))
	}
}

// writePump drains the send queue in order and keeps the peer alive with
// pings. It closes the socket when the connection is closed or a write
// fails, which in turn ends readPump.
func (s *session) writePump() {
	ticker := time.NewTicker(s.hub.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		s.ws.Close()
	}()

	for {
		select {
		case message := <-s.conn.send:
			s.ws.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				s.conn.Close()
				return
			}

		case <-ticker.C:
			s.ws.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}

		case <-s.conn.done:
			s.ws.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteWait))
			s.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

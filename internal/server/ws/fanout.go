package ws

import (
	"errors"
	"log/slog"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// DeliveryFailure records a message that could not be queued for one
// connection.
type DeliveryFailure struct {
	Conn *Conn
	Err  error
}

// deliver queues msg on every connection independently. A failure on one
// connection never affects the others.
func deliver(conns []*Conn, msg []byte) (delivered int, failures []DeliveryFailure) {
	for _, c := range conns {
		if err := c.Enqueue(msg); err != nil {
			failures = append(failures, DeliveryFailure{Conn: c, Err: err})
			continue
		}
		delivered++
	}
	return delivered, failures
}

// Broadcast sends msg to conns and returns how many accepted it. Failures
// are logged; a connection whose buffer is full is closed so its session
// tears down and releases its subscriptions.
func (h *Hub) Broadcast(conns []*Conn, msg []byte) int {
	delivered, failures := deliver(conns, msg)
	h.handleFailures(failures)
	return delivered
}

// BroadcastAll sends msg to every open connection regardless of
// subscriptions.
func (h *Hub) BroadcastAll(msg []byte) int {
	return h.Broadcast(h.snapshotConns(), msg)
}

// Publish sends msg to the subscribers of marketID.
func (h *Hub) Publish(marketID string, msg []byte) int {
	return h.Broadcast(h.registry.SubscribersOf(marketID), msg)
}

func (h *Hub) handleFailures(failures []DeliveryFailure) {
	for _, f := range failures {
		if errors.Is(f.Err, domain.ErrSlowConsumer) {
			h.logger.Warn("ws: closing slow client",
				slog.String("conn_id", f.Conn.ID().String()),
				slog.Int("buffer", h.cfg.SendBuffer),
			)
			f.Conn.Close()
			continue
		}
		h.logger.Debug("ws: delivery skipped",
			slog.String("conn_id", f.Conn.ID().String()),
			slog.String("error", f.Err.Error()),
		)
	}
}

package ws

import (
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

// Conn is the handle of one socket session. It is comparable by pointer and
// lives exactly as long as the session.
type Conn struct {
	id   uuid.UUID
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newConn(buffer int) *Conn {
	return &Conn{
		id:   uuid.New(),
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() uuid.UUID { return c.id }

// Enqueue queues msg for the session's writer without blocking. It returns
// domain.ErrConnClosed after Close and domain.ErrSlowConsumer when the send
// buffer is full.
func (c *Conn) Enqueue(msg []byte) error {
	select {
	case <-c.done:
		return domain.ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return domain.ErrConnClosed
	default:
		return domain.ErrSlowConsumer
	}
}

// Close marks the connection closed. The session's writer notices and tears
// the socket down. Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

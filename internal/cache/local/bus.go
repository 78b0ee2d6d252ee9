// Package local provides in-process stand-ins for the shared cache services,
// used when Redis is not configured.
package local

import (
	"context"
	"sync"
)

const defaultBuffer = 256

// Bus is an in-process SignalBus. Publish never blocks: a subscriber whose
// buffer is full misses the message.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan []byte
	buffer int
}

// NewBus creates a Bus with the given per-subscriber buffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		subs:   make(map[string][]chan []byte),
		buffer: buffer,
	}
}

// Publish sends payload to every current subscriber of channel.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving messages published on channel until
// ctx is cancelled, after which it is closed.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, b.buffer)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
		close(ch)
	}()
	return ch, nil
}

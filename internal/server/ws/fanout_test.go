package ws

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/marketstream/internal/domain"
)

func isClosed(c *Conn) bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func TestDeliver_ClosedConnDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry()
	c1, c2 := newConn(4), newConn(4)
	r.Subscribe("m1", c1)
	r.Subscribe("m1", c2)
	c1.Close()

	delivered, failures := deliver(r.SubscribersOf("m1"), []byte(`{"type":"market_update"}`))

	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if len(failures) != 1 || failures[0].Conn != c1 {
		t.Fatalf("failures = %v, want one for c1", failures)
	}
	if !errors.Is(failures[0].Err, domain.ErrConnClosed) {
		t.Errorf("failure error = %v, want ErrConnClosed", failures[0].Err)
	}
	select {
	case msg := <-c2.send:
		if string(msg) != `{"type":"market_update"}` {
			t.Errorf("c2 got %s", msg)
		}
	default:
		t.Error("c2 did not receive the event")
	}
}

func TestBroadcast_SlowConsumerClosed(t *testing.T) {
	h := NewHub(NewRegistry(), nil, Config{SendBuffer: 1}, slog.Default())
	slow, fast := newConn(1), newConn(8)
	h.add(slow)
	h.add(fast)

	if n := h.BroadcastAll([]byte("a")); n != 2 {
		t.Errorf("first broadcast delivered %d, want 2", n)
	}
	if n := h.BroadcastAll([]byte("b")); n != 1 {
		t.Errorf("second broadcast delivered %d, want 1", n)
	}

	if !isClosed(slow) {
		t.Error("slow consumer should be closed")
	}
	if isClosed(fast) {
		t.Error("fast consumer should stay open")
	}
	if len(fast.send) != 2 {
		t.Errorf("fast queue = %d, want 2", len(fast.send))
	}
}

func TestBroadcast_PreservesOrderPerConn(t *testing.T) {
	h := NewHub(NewRegistry(), nil, Config{}, slog.Default())
	c := newConn(16)
	h.registry.Subscribe("m1", c)

	for _, m := range []string{"1", "2", "3"} {
		h.Publish("m1", []byte(m))
	}

	for _, want := range []string{"1", "2", "3"} {
		if got := string(<-c.send); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestPublish_UnknownMarket(t *testing.T) {
	h := NewHub(NewRegistry(), nil, Config{}, slog.Default())

	if n := h.Publish("nobody", []byte("x")); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
}

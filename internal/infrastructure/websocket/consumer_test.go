package websocket

import (
	"context"
	"testing"
	"time"

	"xbook/internal/application/port"
)

func TestBackoffNext(t *testing.T) {
	b := Backoff{Min: 500 * time.Millisecond, Max: 10 * time.Second, Factor: 2}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{5, 8 * time.Second},
		{6, 10 * time.Second},
		{50, 10 * time.Second},
	}
	for _, c := range cases {
		if got := b.Next(c.attempt); got != c.want {
			t.Fatalf("Next(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := DefaultBackoff()
	for i := 0; i < 200; i++ {
		d := b.Next(3) // 2s ± 20%
		if d < 1600*time.Millisecond || d > 2400*time.Millisecond {
			t.Fatalf("jittered wait out of range: %v", d)
		}
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepCtx(ctx, time.Hour) {
		t.Fatalf("sleepCtx should return false on cancelled ctx")
	}
	if !sleepCtx(context.Background(), time.Millisecond) {
		t.Fatalf("sleepCtx should return true after waiting")
	}
}

func frame(stream string) port.Frame { return port.Frame{Stream: stream} }

func TestConsumerDropOldest(t *testing.T) {
	c := newConsumer("test", 1, 2, OverflowDropOldest, time.Second, func(port.Frame) {})

	for _, s := range []string{"f1", "f2", "f3"} {
		if !c.offer(frame(s)) {
			t.Fatalf("offer %s rejected under drop-oldest", s)
		}
	}
	if c.dropped.Load() != 1 {
		t.Fatalf("dropped = %d, want 1", c.dropped.Load())
	}
	if c.queued() != 2 {
		t.Fatalf("queued = %d, want 2", c.queued())
	}
	if f := <-c.ch; f.Stream != "f2" {
		t.Fatalf("oldest remaining = %s, want f2", f.Stream)
	}
}

func TestConsumerDropNewest(t *testing.T) {
	c := newConsumer("test", 1, 2, OverflowDropNewest, time.Second, func(port.Frame) {})

	c.offer(frame("f1"))
	c.offer(frame("f2"))
	if c.offer(frame("f3")) {
		t.Fatalf("offer should fail when queue full under drop-newest")
	}
	if f := <-c.ch; f.Stream != "f1" {
		t.Fatalf("head = %s, want f1", f.Stream)
	}
}

func TestConsumerStopRejectsOffers(t *testing.T) {
	got := make(chan port.Frame, 1)
	c := newConsumer("test", 1, 4, OverflowDropOldest, time.Second, func(f port.Frame) { got <- f })
	go c.run()

	c.offer(frame("a"))
	select {
	case f := <-got:
		if f.Stream != "a" {
			t.Fatalf("got %s", f.Stream)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("frame not delivered")
	}

	c.stop()
	c.stop()
	<-c.done
	if c.offer(frame("b")) {
		t.Fatalf("offer after stop should be rejected")
	}
}

func TestConsumerRecoversHandlerPanic(t *testing.T) {
	calls := make(chan struct{}, 2)
	c := newConsumer("test", 1, 4, OverflowDropOldest, time.Second, func(port.Frame) {
		calls <- struct{}{}
		panic("boom")
	})
	go c.run()
	defer c.stop()

	c.offer(frame("a"))
	c.offer(frame("b"))
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("handler call %d missing after panic", i+1)
		}
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	if p, err := ParseOverflowPolicy("drop_newest"); err != nil || p != OverflowDropNewest {
		t.Fatalf("drop_newest: %v %v", p, err)
	}
	if p, err := ParseOverflowPolicy(""); err != nil || p != OverflowDropOldest {
		t.Fatalf("default: %v %v", p, err)
	}
	if _, err := ParseOverflowPolicy("block"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

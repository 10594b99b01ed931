package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDeliversAllOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{BufferSize: 64}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{Type: "login_success"})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered, got %d", got)
	}
	if d.Delivered() != 50 {
		t.Fatalf("expected Delivered()=50, got %d", d.Delivered())
	}

	d.Emit(context.Background(), Event{Type: "after_close"})
	if got := sink.count.Load(); got != 50 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{BufferSize: 1, DropIfFull: true}, sink)

	// one event is held by the sink, one fills the buffer, the rest drop
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: "x"})
	}

	deadline := time.Now().Add(time.Second)
	for d.Dropped() < 8 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Dropped() < 8 {
		t.Fatalf("expected at least 8 dropped, got %d", d.Dropped())
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherBlockingHonorsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{Type: "held"})
	time.Sleep(10 * time.Millisecond)
	d.Emit(context.Background(), Event{Type: "buffered"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{Type: "blocked"})

	if d.Dropped() != 1 {
		t.Fatalf("expected cancelled emit to count as dropped, got %d", d.Dropped())
	}

	close(sink.gate)
	d.Close()
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{Type: "signup", Username: "alice5", Success: true})
	sink.Emit(context.Background(), Event{Type: "login_failure", Reason: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != "login_failure" || ev.Reason != "invalid_credentials" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(0)
	sink.Emit(context.Background(), Event{Type: "logout"})

	select {
	case ev := <-sink.Events():
		if ev.Type != "logout" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected buffered event")
	}
}

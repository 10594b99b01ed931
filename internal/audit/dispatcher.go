package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatcher queue. With DropIfFull an event that finds
// the queue full is discarded instead of waiting.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher hands events to a Sink on one worker goroutine. Events from a
// single caller reach the sink in the order they were emitted.
type Dispatcher struct {
	sink Sink
	drop bool

	// mu guards closed and keeps Emit from sending on a closed queue.
	mu     sync.RWMutex
	closed bool
	queue  chan Event
	idle   chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts the worker. A nil sink discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:  sink,
		drop:  cfg.DropIfFull,
		queue: make(chan Event, size),
		idle:  make(chan struct{}),
	}
	go d.work()
	return d
}

func (d *Dispatcher) work() {
	defer close(d.idle)
	for ev := range d.queue {
		d.sink.Emit(context.Background(), ev)
		d.delivered.Add(1)
	}
}

// Emit queues ev. A blocking dispatcher waits for room until ctx is done;
// an event given up that way counts as dropped. Emit after Close is a
// no-op.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.drop {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops intake and returns once every queued event reached the sink.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.idle
}

// Dropped reports events discarded on a full queue or a cancelled wait.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

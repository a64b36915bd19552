package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events that find the queue full instead of waiting.
	// Events Critical reports true for always wait.
	DropIfFull bool
	// Critical marks events that must reach the sink. Nil means none.
	Critical func(Event) bool
	// OnDrop runs on the emitting goroutine for every discarded event.
	OnDrop func(Event)
	// OnBackpressure runs when a critical event had to wait for queue room
	// under DropIfFull.
	OnBackpressure func(Event)
}

// Dispatcher relays events to one sink from a single goroutine, so the sink
// sees them in enqueue order.
type Dispatcher struct {
	cfg      Config
	sink     Sink
	queue    chan Event
	finished chan struct{}

	// Senders hold mu shared; Close holds it exclusively to close queue, so
	// no send can race the close.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled;
// every method is safe on a nil *Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		queue:    make(chan Event, cfg.BufferSize),
		finished: make(chan struct{}),
	}
	go d.relay()
	return d
}

// relay runs until Close closes the queue and everything accepted is delivered.
func (d *Dispatcher) relay() {
	defer close(d.finished)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit enqueues event. A full queue sheds it when DropIfFull is set and the
// event is not critical; otherwise Emit waits for room or ctx. Events emitted
// after Close are discarded without counting as drops.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- event:
		return
	default:
	}

	critical := d.cfg.Critical != nil && d.cfg.Critical(event)
	if d.cfg.DropIfFull && !critical {
		d.drop(event)
		return
	}
	if d.cfg.DropIfFull && d.cfg.OnBackpressure != nil {
		d.cfg.OnBackpressure(event)
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(event)
	}
}

// Close stops accepting events, waits for pending senders, then flushes the
// queue to the sink. It is idempotent.
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

	<-d.finished
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

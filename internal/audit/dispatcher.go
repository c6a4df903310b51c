package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSinkTimeout bounds one sink delivery when Config.SinkTimeout is zero.
const DefaultSinkTimeout = 5 * time.Second

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit drop instead of waiting for buffer space.
	DropIfFull bool
	// SinkTimeout bounds the context handed to the sink for each event.
	SinkTimeout time.Duration
	// OnDrop is called for every event that was not buffered.
	OnDrop func(Event)
}

// Dispatcher forwards audit events to a sink on its own goroutine so that login, refresh
// and logout paths never wait on sink I/O.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled; a nil Dispatcher
// accepts and discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = DefaultSinkTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SinkTimeout)
	defer cancel()
	d.sink.Emit(ctx, event)
}

// Emit buffers event. Unless DropIfFull is set it waits for buffer space until ctx is done;
// an event that could not be buffered is reported to OnDrop.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if d.cfg.DropIfFull {
		d.TryEmit(event)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped(event)
	case <-d.done:
	}
}

// TryEmit buffers event without waiting, whatever DropIfFull says. It reports whether the
// event was buffered.
func (d *Dispatcher) TryEmit(event Event) bool {
	if d == nil || d.closed.Load() {
		return false
	}
	select {
	case d.ch <- event:
		return true
	case <-d.done:
		return false
	default:
		d.dropped(event)
		return false
	}
}

func (d *Dispatcher) dropped(event Event) {
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(event)
	}
}

// Close delivers what is buffered and stops the dispatcher. Later emits are ignored.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

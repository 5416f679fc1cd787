package bridge

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handler receives outbound events in emission order.
// It must not call Close on the Outbound that invokes it.
type Handler func(Event)

// Outbound pumps sandbox events to a handler on a single goroutine
type Outbound struct {
	events  chan Event
	handler Handler
	done    chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewOutbound starts the pump. buffer <= 0 picks a small default.
func NewOutbound(handler Handler, buffer int) *Outbound {
	if buffer <= 0 {
		buffer = 64
	}
	if handler == nil {
		handler = func(Event) {}
	}

	o := &Outbound{
		events:  make(chan Event, buffer),
		handler: handler,
		done:    make(chan struct{}),
	}
	go o.pump()
	return o
}

func (o *Outbound) pump() {
	defer close(o.done)
	for ev := range o.events {
		o.handler(ev)
	}
}

// Post parses a raw sandbox message and queues it.
// Returns false once the channel is closed.
func (o *Outbound) Post(raw string) bool {
	return o.Emit(ParseMessage(raw))
}

// Emit queues an already typed event
func (o *Outbound) Emit(ev Event) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		o.dropped.Add(1)
		return false
	}
	if ev.Received.IsZero() {
		ev.Received = time.Now()
	}
	o.events <- ev
	return true
}

// Close stops intake and waits for queued events to be handled
func (o *Outbound) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.events)
	}
	o.mu.Unlock()

	<-o.done
}

// Closed reports whether intake has stopped
func (o *Outbound) Closed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.closed
}

// Dropped counts events posted after Close
func (o *Outbound) Dropped() uint64 {
	return o.dropped.Load()
}

// Done is closed after the last event has been handled
func (o *Outbound) Done() <-chan struct{} {
	return o.done
}

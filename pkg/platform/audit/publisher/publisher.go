// Package publisher provides audit event sinks and the async dispatcher that
// decouples request handling from emission. Emitting an event never blocks a
// request: the dispatcher buffers and a background goroutine drains to the
// configured sink.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"identityd/pkg/platform/audit"
)

// Publisher delivers audit events to a backing sink.
type Publisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Nop discards events. Used when auditing is not configured.
type Nop struct{}

func (Nop) Emit(context.Context, audit.Event) error { return nil }

// Memory collects events in-process for tests and local runs.
type Memory struct {
	mu     sync.Mutex
	events []audit.Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Emit(_ context.Context, event audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *Memory) Events() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Dispatcher buffers events and forwards them to a sink from a background
// goroutine. A full buffer drops the event rather than stalling the caller;
// drops are counted and logged.
type Dispatcher struct {
	sink    Publisher
	logger  *slog.Logger
	inbox   chan audit.Event
	dropped atomic.Uint64
}

func NewDispatcher(sink Publisher, logger *slog.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		sink:   sink,
		logger: logger,
		inbox:  make(chan audit.Event, buffer),
	}
}

// Emit enqueues the event. It never blocks and never fails the caller.
func (d *Dispatcher) Emit(_ context.Context, event audit.Event) error {
	select {
	case d.inbox <- event:
	default:
		d.dropped.Add(1)
		d.logger.Warn("audit event dropped, buffer full",
			"action", string(event.Action),
		)
	}
	return nil
}

// Dropped reports how many events were discarded due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Run drains the buffer until ctx is cancelled, then flushes what remains.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return ctx.Err()
		case event := <-d.inbox:
			d.forward(ctx, event)
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.inbox:
			d.forward(context.Background(), event)
		default:
			return
		}
	}
}

func (d *Dispatcher) forward(ctx context.Context, event audit.Event) {
	if err := d.sink.Emit(ctx, event); err != nil {
		d.logger.Error("audit emit failed",
			"action", string(event.Action),
			"error", err.Error(),
		)
	}
}

// Package events distributes vault events to observers and rebuilds vault
// history from them.
package events

import (
	"context"
	"sync"

	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/model"
)

// Sink consumes events. A failing sink is logged and skipped; it never
// affects the vault operation that produced the event.
type Sink interface {
	Handle(ctx context.Context, ev model.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev model.Event) error

// Handle calls f.
func (f SinkFunc) Handle(ctx context.Context, ev model.Event) error { return f(ctx, ev) }

// Bus fans events out to its sinks in registration order.
type Bus struct {
	mu    sync.RWMutex
	sinks []namedSink
	log   *logging.Logger
}

type namedSink struct {
	name string
	sink Sink
}

// NewBus creates a bus that reports sink failures to log.
func NewBus(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.Global()
	}
	return &Bus{log: log}
}

// Subscribe adds a sink. name appears in failure logs.
func (b *Bus) Subscribe(name string, s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, namedSink{name: name, sink: s})
}

// Emit delivers ev to every sink.
func (b *Bus) Emit(ctx context.Context, ev model.Event) {
	b.mu.RLock()
	sinks := make([]namedSink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.sink.Handle(ctx, ev); err != nil {
			b.log.ErrorErr("event sink failed", err, map[string]any{
				"sink":     s.name,
				"event":    string(ev.Type),
				"event_id": ev.ID,
			})
		}
	}
}

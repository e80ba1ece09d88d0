package events

import (
	"context"
	"sync"

	"github.com/jvs-project/timelock/pkg/model"
)

// Recorder keeps every event it handles, in order.
type Recorder struct {
	mu     sync.RWMutex
	events []model.Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handle appends ev.
func (r *Recorder) Handle(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Emit lets a Recorder stand in for a Bus.
func (r *Recorder) Emit(ctx context.Context, ev model.Event) {
	_ = r.Handle(ctx, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []model.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType returns the recorded events of type t.
func (r *Recorder) ByType(t model.EventType) []model.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the most recent event and false if none was recorded.
func (r *Recorder) Last() (model.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.events) == 0 {
		return model.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Package event carries simulation notifications from the core to subscribers
// such as the SSE and WebSocket streams.
package event

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderCreated   = "order.created"
	OrderStatus    = "order.status"
	OrderCompleted = "order.completed"
	RouteAssigned  = "route.assigned"
	TourFailed     = "tour.failed"
	CourierPhase   = "courier.phase"
	KitchenerPhase = "kitchener.phase"
	WorkerAdded    = "worker.activated"
	WorkerRemoved  = "worker.deactivated"
	MapChanged     = "map.changed"
)

type Event struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data,omitempty"`
}

func New(typ string, at time.Time, data map[string]any) Event {
	return Event{ID: uuid.NewString(), Type: typ, At: at, Data: data}
}

// Emitter receives events. Implementations must not call back into the simulation.
type Emitter interface {
	Emit(Event)
}

// Func adapts a function to Emitter.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Emitter = Func(func(Event) {})

// Recorder keeps events in memory; useful in tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}

// Package worker implements the courier and kitchener state machines. Each
// worker is advanced by Update with the simulated time elapsed since the last
// tick; time left over when a phase ends is carried into the next phase within
// the same call, so splitting a tick in two never changes the outcome.
package worker

import (
	"errors"
	"fmt"
	"time"

	"foodsim/internal/config"
	"foodsim/internal/event"
	"foodsim/internal/graph"
	"foodsim/internal/model"
)

var (
	// ErrPreconditionViolated means a phase was entered without the assignment it needs,
	// or an assignment was offered to a worker that cannot take it.
	ErrPreconditionViolated = errors.New("worker precondition violated")
	// ErrInProgress means the worker holds an assignment and cannot be removed.
	ErrInProgress = errors.New("worker has work in progress")

	ErrUnknownWorker   = errors.New("unknown worker")
	ErrDuplicateWorker = errors.New("worker already active")
)

type ID int

// RandInt returns a uniformly distributed integer in [lo, hi].
type RandInt func(lo, hi int) int

// Requeuer takes food that finished one kitchen stage and queues it for the next.
type Requeuer interface {
	PushFront(stage model.Stage, ref model.FoodRef)
}

// Env is everything a worker needs from the rest of the simulation.
type Env struct {
	Graph     *graph.Graph
	Depot     graph.VertexID
	Courier   config.Courier
	Kitchener config.Kitchener
	// Budget bounds single-destination path searches, in particular the way back to the depot.
	Budget  time.Duration
	Rand    RandInt
	Orders  *model.Arena
	Kitchen Requeuer
	Events  event.Emitter
	Now     func() time.Time
}

// Time is the current simulation time.
func (env *Env) Time() time.Time {
	if env.Now == nil {
		return time.Time{}
	}
	return env.Now()
}

// Emit publishes an event stamped with the simulation time.
func (env *Env) Emit(typ string, data map[string]any) {
	if env.Events == nil {
		return
	}
	env.Events.Emit(event.New(typ, env.Time(), data))
}

// SetStatus advances o and publishes the change. An invalid transition is a bug and panics.
func (env *Env) SetStatus(o *model.Order, s model.Status) {
	o.MustAdvance(s, env.Time())
	env.Emit(event.OrderStatus, map[string]any{"order": o.ID, "status": s.String()})
}

func (env *Env) order(id model.OrderID) (*model.Order, error) {
	o := env.Orders.Order(id)
	if o == nil {
		return nil, fmt.Errorf("order %d not in arena: %w", id, ErrPreconditionViolated)
	}
	return o, nil
}

// draw picks a whole number of seconds in [lo, hi].
func (env *Env) draw(lo, hi time.Duration) time.Duration {
	a, b := int(lo/time.Second), int(hi/time.Second)
	if b < a {
		b = a
	}
	return time.Duration(env.Rand(a, b)) * time.Second
}

// pause rolls 1..100; a roll within chance gives a long break, anything else the short pause.
func (env *Env) pause(chance int, lo, hi, short time.Duration) time.Duration {
	if roll := env.Rand(1, 100); roll <= chance {
		return env.draw(lo, hi)
	}
	return short
}

// Location is a worker position on the map. Inaccessible workers have none.
type Location struct {
	X            int  `json:"x"`
	Y            int  `json:"y"`
	Inaccessible bool `json:"inaccessible,omitempty"`
}

func (env *Env) vertexLocation(id graph.VertexID) Location {
	v, _ := env.Graph.Vertex(id)
	return Location{X: v.X, Y: v.Y}
}

// timed accumulates dt towards target and reports the overshoot once it is reached.
func timed(elapsed *time.Duration, target, dt time.Duration) (bool, time.Duration) {
	*elapsed += dt
	if *elapsed < target {
		return false, 0
	}
	return true, *elapsed - target
}

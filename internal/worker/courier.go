package worker

import (
	"fmt"
	"log"
	"time"

	"foodsim/internal/event"
	"foodsim/internal/graph"
	"foodsim/internal/model"
	"foodsim/internal/opt"
)

type CourierPhase int

const (
	CourierInaccessible CourierPhase = iota
	CourierWaiting
	CourierAccepting
	CourierMovement
	CourierDeliveryAndPayment
	CourierReturning
)

func (p CourierPhase) String() string {
	switch p {
	case CourierInaccessible:
		return "inaccessible"
	case CourierWaiting:
		return "waiting"
	case CourierAccepting:
		return "accepting"
	case CourierMovement:
		return "movement"
	case CourierDeliveryAndPayment:
		return "delivery_and_payment"
	case CourierReturning:
		return "returning"
	}
	return fmt.Sprintf("courier_phase(%d)", int(p))
}

func (p CourierPhase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

type courierState interface {
	phase() CourierPhase
	enter(c *Courier, env *Env) error
	// update consumes dt. A non-nil state means the phase ended and the
	// returned duration is left over for the next one.
	update(c *Courier, env *Env, dt time.Duration) (courierState, time.Duration, error)
}

// Phase singletons. They hold no data; everything lives on the Courier.
var (
	courierInaccessible courierState = inaccessibleState{}
	courierWaiting      courierState = waitingState{}
	courierAccepting    courierState = acceptingState{}
	courierMovement     courierState = movementState{}
	courierDelivery     courierState = deliveryState{}
	courierReturning    courierState = returningState{}
)

// Courier delivers routes. The zero value is not usable; use NewCourier.
type Courier struct {
	id      ID
	state   courierState
	entered bool
	elapsed time.Duration
	target  time.Duration

	route *model.Route
	dests []graph.VertexID
	next  int // index into route.Orders of the order being served next

	path   []graph.Edge
	edge   int
	passed int64 // nanometers along path[edge]
	at     graph.VertexID
	loc    Location
}

// NewCourier returns a courier waiting at the depot.
func NewCourier(id ID, depot graph.VertexID) *Courier {
	return &Courier{id: id, state: courierWaiting, at: depot}
}

func (c *Courier) ID() ID              { return c.id }
func (c *Courier) Phase() CourierPhase { return c.state.phase() }
func (c *Courier) Route() *model.Route { return c.route }
func (c *Courier) Location() Location  { return c.loc }

// Idle reports whether the courier can take a route now.
func (c *Courier) Idle() bool { return c.state == courierWaiting && c.route == nil }

// Busy reports whether the courier holds a route.
func (c *Courier) Busy() bool { return c.route != nil }

// Assign hands r to an idle courier. The courier starts accepting it on its next update.
func (c *Courier) Assign(r *model.Route) error {
	if !c.Idle() {
		return fmt.Errorf("courier %d is %s: %w", c.id, c.Phase(), ErrPreconditionViolated)
	}
	if r == nil || len(r.Orders) == 0 {
		return fmt.Errorf("courier %d: empty route: %w", c.id, ErrPreconditionViolated)
	}
	c.route = r
	return nil
}

// Update advances the courier by dt of simulated time.
func (c *Courier) Update(env *Env, dt time.Duration) error {
	for {
		if !c.entered {
			c.entered = true
			c.elapsed, c.target = 0, 0
			if err := c.state.enter(c, env); err != nil {
				return fmt.Errorf("courier %d entering %s: %w", c.id, c.Phase(), err)
			}
		}
		next, rest, err := c.state.update(c, env, dt)
		if err != nil {
			return fmt.Errorf("courier %d in %s: %w", c.id, c.Phase(), err)
		}
		if next == nil {
			return nil
		}
		env.Emit(event.CourierPhase, map[string]any{"courier": c.id, "from": c.Phase().String(), "to": next.phase().String()})
		c.state = next
		c.entered = false
		dt = rest
	}
}

// CourierView is a read-only snapshot of a courier.
type CourierView struct {
	ID        ID              `json:"id"`
	Phase     CourierPhase    `json:"phase"`
	Location  Location        `json:"location"`
	RouteID   string          `json:"routeId,omitempty"`
	Orders    []model.OrderID `json:"orders,omitempty"`
	Delivered int             `json:"delivered"`
	Elapsed   time.Duration   `json:"elapsed"`
	Target    time.Duration   `json:"target"`
}

func (c *Courier) View() CourierView {
	v := CourierView{ID: c.id, Phase: c.Phase(), Location: c.loc, Elapsed: c.elapsed, Target: c.target}
	if c.route != nil {
		v.RouteID = c.route.ID.String()
		v.Orders = append([]model.OrderID(nil), c.route.Orders...)
		v.Delivered = c.next
	}
	return v
}

// travel moves along c.path until stop reports true for a reached vertex or the
// path ends. It returns whether either happened and the unused time.
func (c *Courier) travel(env *Env, dt time.Duration, stop func(graph.VertexID) bool) (bool, time.Duration) {
	speed := int64(env.Graph.AverageSpeed())
	for c.edge < len(c.path) {
		e := c.path[c.edge]
		full := int64(e.Distance) * int64(time.Second)
		need := time.Duration((full - c.passed + speed - 1) / speed)
		if dt < need {
			c.passed += int64(dt) * speed
			c.loc = env.interpolate(e, c.passed, full)
			return false, 0
		}
		dt -= need
		c.passed = 0
		c.edge++
		c.at = e.To
		c.loc = env.vertexLocation(e.To)
		if stop(e.To) {
			return true, dt
		}
	}
	return true, dt
}

func (env *Env) interpolate(e graph.Edge, passed, full int64) Location {
	a, _ := env.Graph.Vertex(e.From)
	b, _ := env.Graph.Vertex(e.To)
	t := float64(passed) / float64(full)
	return Location{
		X: int(float64(a.X) + float64(b.X-a.X)*t),
		Y: int(float64(a.Y) + float64(b.Y-a.Y)*t),
	}
}

type inaccessibleState struct{}

func (inaccessibleState) phase() CourierPhase { return CourierInaccessible }

func (inaccessibleState) enter(c *Courier, env *Env) error {
	c.route, c.dests, c.next = nil, nil, 0
	c.path, c.edge, c.passed = nil, 0, 0
	c.at = env.Depot
	c.loc = Location{Inaccessible: true}
	p := env.Courier
	c.target = env.pause(p.PauseChance, p.PauseMin, p.PauseMax, p.ShortPause)
	return nil
}

func (inaccessibleState) update(c *Courier, env *Env, dt time.Duration) (courierState, time.Duration, error) {
	if done, rest := timed(&c.elapsed, c.target, dt); done {
		return courierWaiting, rest, nil
	}
	return nil, 0, nil
}

type waitingState struct{}

func (waitingState) phase() CourierPhase { return CourierWaiting }

func (waitingState) enter(c *Courier, env *Env) error {
	c.at = env.Depot
	c.loc = env.vertexLocation(env.Depot)
	return nil
}

func (waitingState) update(c *Courier, env *Env, dt time.Duration) (courierState, time.Duration, error) {
	if c.route != nil {
		return courierAccepting, dt, nil
	}
	c.elapsed += dt
	return nil, 0, nil
}

type acceptingState struct{}

func (acceptingState) phase() CourierPhase { return CourierAccepting }

func (acceptingState) enter(c *Courier, env *Env) error {
	if c.route == nil {
		return ErrPreconditionViolated
	}
	c.dests = make([]graph.VertexID, len(c.route.Orders))
	for i, id := range c.route.Orders {
		o, err := env.order(id)
		if err != nil {
			return err
		}
		c.dests[i] = o.Destination
		env.SetStatus(o, model.StatusDelivering)
	}
	c.next = 0
	c.target = env.draw(env.Courier.AcceptanceMin, env.Courier.AcceptanceMax)
	return nil
}

func (acceptingState) update(c *Courier, env *Env, dt time.Duration) (courierState, time.Duration, error) {
	done, rest := timed(&c.elapsed, c.target, dt)
	if !done {
		return nil, 0, nil
	}
	c.path, c.edge, c.passed = c.route.Path, 0, 0
	return courierMovement, rest, nil
}

type movementState struct{}

func (movementState) phase() CourierPhase { return CourierMovement }

func (movementState) enter(c *Courier, env *Env) error {
	if c.route == nil || c.next >= len(c.dests) {
		return ErrPreconditionViolated
	}
	return nil
}

func (movementState) update(c *Courier, env *Env, dt time.Duration) (courierState, time.Duration, error) {
	dest := c.dests[c.next]
	arrived, rest := c.travel(env, dt, func(v graph.VertexID) bool { return v == dest })
	if !arrived {
		return nil, 0, nil
	}
	if c.at != dest {
		log.Printf("courier %d: path ended at %d before destination %d, delivering here", c.id, c.at, dest)
	}
	return courierDelivery, rest, nil
}

type deliveryState struct{}

func (deliveryState) phase() CourierPhase { return CourierDeliveryAndPayment }

func (deliveryState) enter(c *Courier, env *Env) error {
	if c.route == nil || c.next >= len(c.route.Orders) {
		return ErrPreconditionViolated
	}
	c.loc = env.vertexLocation(c.at)
	c.target = env.draw(env.Courier.DeliveryMin, env.Courier.DeliveryMax)
	return nil
}

// update hands over the food, then collects payment if the order is not paid yet.
func (deliveryState) update(c *Courier, env *Env, dt time.Duration) (courierState, time.Duration, error) {
	c.elapsed += dt
	for c.elapsed >= c.target {
		over := c.elapsed - c.target
		o, err := env.order(c.route.Orders[c.next])
		if err != nil {
			return nil, 0, err
		}
		if !o.Paid {
			env.SetStatus(o, model.StatusPaying)
			o.Paid = true
			c.elapsed = over
			c.target = env.draw(env.Courier.PaymentMin, env.Courier.PaymentMax)
			continue
		}
		env.SetStatus(o, model.StatusDeliveringCompleted)
		c.next++
		switch {
		case c.next >= len(c.route.Orders):
			return courierReturning, over, nil
		case c.dests[c.next] == c.at:
			return courierDelivery, over, nil
		default:
			return courierMovement, over, nil
		}
	}
	return nil, 0, nil
}

type returningState struct{}

func (returningState) phase() CourierPhase { return CourierReturning }

func (returningState) enter(c *Courier, env *Env) error {
	path, err := opt.FindPath(env.Graph, c.at, env.Depot, int(env.Budget/time.Second))
	if err != nil {
		log.Printf("courier %d: no way back from %d to depot: %v", c.id, c.at, err)
		path = nil
	}
	c.path, c.edge, c.passed = path, 0, 0
	return nil
}

func (returningState) update(c *Courier, env *Env, dt time.Duration) (courierState, time.Duration, error) {
	arrived, rest := c.travel(env, dt, func(graph.VertexID) bool { return false })
	if !arrived {
		return nil, 0, nil
	}
	return courierInaccessible, rest, nil
}

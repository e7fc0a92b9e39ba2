package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"foodsim/internal/graph"
)

// StatusChange records when an order entered a status.
type StatusChange struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

type Order struct {
	ID          OrderID        `json:"id"`
	Destination graph.VertexID `json:"destination"`
	Created     time.Time      `json:"created"`
	Completed   time.Time      `json:"completed,omitempty"`
	Food        []Food         `json:"food"`
	Status      Status         `json:"status"`
	Paid        bool           `json:"paid"`
	History     []StatusChange `json:"history"`
}

// Advance moves the order to status to, stamping the change with at.
func (o *Order) Advance(to Status, at time.Time) error {
	if !o.Status.CanAdvance(to) {
		return fmt.Errorf("order %d: %s -> %s: %w", o.ID, o.Status, to, ErrBadTransition)
	}
	o.Status = to
	o.History = append(o.History, StatusChange{Status: to, At: at})
	return nil
}

// MustAdvance is Advance for callers whose own state guarantees the transition.
func (o *Order) MustAdvance(to Status, at time.Time) {
	if err := o.Advance(to, at); err != nil {
		panic(err)
	}
}

// FoodDone reports whether every food line is done.
func (o *Order) FoodDone() bool {
	for _, f := range o.Food {
		if f.Status != FoodDone {
			return false
		}
	}
	return true
}

// Clone returns a deep copy suitable for handing outside the simulation.
func (o *Order) Clone() Order {
	c := *o
	c.Food = append([]Food(nil), o.Food...)
	c.History = append([]StatusChange(nil), o.History...)
	return c
}

// Route is one courier trip: orders in delivery order and the outbound path
// from the depot to the last destination.
type Route struct {
	ID     uuid.UUID    `json:"id"`
	Orders []OrderID    `json:"orders"`
	Path   []graph.Edge `json:"path"`
}

func NewRoute(orders []OrderID, path []graph.Edge) *Route {
	return &Route{ID: uuid.New(), Orders: orders, Path: path}
}

// Arena owns every live order. Other components refer to orders by id.
type Arena struct {
	next   OrderID
	orders map[OrderID]*Order
}

func NewArena() *Arena {
	return &Arena{next: 1, orders: map[OrderID]*Order{}}
}

// Create allocates a new order in status Accepted.
func (a *Arena) Create(dest graph.VertexID, food []Food, now time.Time) *Order {
	o := &Order{
		ID:          a.next,
		Destination: dest,
		Created:     now,
		Food:        food,
		Status:      StatusAccepted,
		History:     []StatusChange{{Status: StatusAccepted, At: now}},
	}
	a.next++
	a.orders[o.ID] = o
	return o
}

// Order returns the live order with id, or nil.
func (a *Arena) Order(id OrderID) *Order { return a.orders[id] }

func (a *Arena) Remove(id OrderID) { delete(a.orders, id) }

func (a *Arena) Len() int { return len(a.orders) }

// Orders returns the live orders ordered by id.
func (a *Arena) Orders() []*Order {
	out := make([]*Order, 0, len(a.orders))
	for _, o := range a.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

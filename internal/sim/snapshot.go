package sim

import (
	"fmt"
	"slices"
	"time"

	"foodsim/internal/event"
	"foodsim/internal/graph"
	"foodsim/internal/model"
	"foodsim/internal/opt"
	"foodsim/internal/worker"
)

// Order returns a live order or, failing that, one from the completed history.
func (s *System) Order(id model.OrderID) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.env.Orders.Order(id); o != nil {
		return o.Clone(), nil
	}
	for _, o := range s.history {
		if o.ID == id {
			return o, nil
		}
	}
	return model.Order{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
}

// Orders returns every live order by id.
func (s *System) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.env.Orders.Orders()
	out := make([]model.Order, len(live))
	for i, o := range live {
		out[i] = o.Clone()
	}
	return out
}

// CookingOrders returns the orders the kitchen is working on.
func (s *System) CookingOrders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clones(s.kitchen.Active())
}

// DeliveryOrders returns queued orders followed by those out for delivery.
func (s *System) DeliveryOrders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clones(append(s.delivery.Pending(), s.delivery.Active()...))
}

func (s *System) clones(ids []model.OrderID) []model.Order {
	out := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		if o := s.env.Orders.Order(id); o != nil {
			out = append(out, o.Clone())
		}
	}
	return out
}

// History returns completed orders, most recent last.
func (s *System) History() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// KitchenQueues returns the food waiting at each stage.
func (s *System) KitchenQueues() map[string][]model.FoodRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]model.FoodRef, len(model.Stages))
	for _, st := range model.Stages {
		out[st.String()] = s.kitchen.Queue(st)
	}
	return out
}

func (s *System) Couriers() []worker.CourierView {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.delivery.Couriers()
	out := make([]worker.CourierView, len(cs))
	for i, c := range cs {
		out[i] = c.View()
	}
	return out
}

func (s *System) Courier(id worker.ID) (worker.CourierView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.delivery.Courier(id)
	if c == nil {
		return worker.CourierView{}, fmt.Errorf("courier %d: %w", id, worker.ErrUnknownWorker)
	}
	return c.View(), nil
}

func (s *System) Kitcheners() []worker.KitchenerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks := s.kitchen.Kitcheners()
	out := make([]worker.KitchenerView, len(ks))
	for i, k := range ks {
		out[i] = k.View()
	}
	return out
}

func (s *System) Kitchener(id worker.ID) (worker.KitchenerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.kitchen.Kitchener(id)
	if k == nil {
		return worker.KitchenerView{}, fmt.Errorf("kitchener %d: %w", id, worker.ErrUnknownWorker)
	}
	return k.View(), nil
}

// Stats summarizes the simulation for the status endpoint.
type Stats struct {
	Now       time.Time      `json:"now"`
	Elapsed   time.Duration  `json:"elapsed"`
	Live      int            `json:"liveOrders"`
	Cooking   int            `json:"cooking"`
	Queued    int            `json:"queuedForDelivery"`
	Delivery  int            `json:"outForDelivery"`
	Completed int            `json:"completedInHistory"`
	Queues    map[string]int `json:"kitchenQueues"`
	Window    int            `json:"autoOrderWindow"`
}

func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Now:       s.now(),
		Elapsed:   s.elapsed,
		Live:      s.env.Orders.Len(),
		Cooking:   len(s.kitchen.Active()),
		Queued:    len(s.delivery.Pending()),
		Delivery:  len(s.delivery.Active()),
		Completed: len(s.history),
		Queues:    map[string]int{},
		Window:    s.window,
	}
	for _, stage := range model.Stages {
		st.Queues[stage.String()] = len(s.kitchen.Queue(stage))
	}
	return st
}

func (s *System) Vertices() []graph.Vertex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.Graph.Vertices()
}

func (s *System) Edges() []graph.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.Graph.Edges()
}

// AddVertex places a new vertex on the map.
func (s *System) AddVertex(x, y int) graph.Vertex {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.env.Graph.AddVertex(x, y)
	v, _ := s.env.Graph.Vertex(id)
	s.env.Emit(event.MapChanged, map[string]any{"op": "add_vertex", "vertex": id})
	return v
}

// RemoveVertex deletes a vertex and its edges. The depot and vertices that
// live orders are headed to stay.
func (s *System) RemoveVertex(id graph.VertexID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.env.Depot {
		return fmt.Errorf("vertex %d is the depot: %w", id, graph.ErrInvalidVertex)
	}
	for _, o := range s.env.Orders.Orders() {
		if o.Destination == id {
			return fmt.Errorf("vertex %d is the destination of order %d: %w", id, o.ID, worker.ErrInProgress)
		}
	}
	if err := s.env.Graph.RemoveVertex(id); err != nil {
		return err
	}
	s.env.Emit(event.MapChanged, map[string]any{"op": "remove_vertex", "vertex": id})
	return nil
}

// AddEdge connects from to to. A zero distance is replaced by the scaled
// straight-line distance between the vertices. At most one edge joins a pair.
func (s *System) AddEdge(from, to graph.VertexID, distance int) (graph.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.env.Graph
	if g.HasEdge(from, to) {
		return graph.Edge{}, fmt.Errorf("edge %d->%d: %w", from, to, graph.ErrDuplicateEdge)
	}
	if distance == 0 {
		d, err := g.Distance(from, to, s.cfg.Map.Scale)
		if err != nil {
			return graph.Edge{}, err
		}
		distance = d
	}
	id, err := g.AddEdge(from, to, distance)
	if err != nil {
		return graph.Edge{}, err
	}
	s.env.Emit(event.MapChanged, map[string]any{"op": "add_edge", "edge": id, "from": from, "to": to})
	i := slices.IndexFunc(g.OutEdges(from), func(e graph.Edge) bool { return e.ID == id })
	return g.OutEdges(from)[i], nil
}

// RemoveEdge deletes every edge from -> to.
func (s *System) RemoveEdge(from, to graph.VertexID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.env.Graph.HasEdge(from, to) {
		return fmt.Errorf("edge %d->%d: %w", from, to, ErrNotFound)
	}
	s.env.Graph.RemoveEdge(from, to)
	s.env.Emit(event.MapChanged, map[string]any{"op": "remove_edge", "from": from, "to": to})
	return nil
}

// Route is a single-destination answer from the path finder.
type Route struct {
	Path []graph.Edge `json:"path"`
	Cost opt.Cost     `json:"cost"`
}

// FindPath runs the single-target search under the delivery time budget.
func (s *System) FindPath(src, dst graph.VertexID) (Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := opt.FindPath(s.env.Graph, src, dst, int(s.env.Budget/time.Second))
	if err != nil {
		return Route{}, err
	}
	return Route{Path: path, Cost: opt.Sum(path)}, nil
}

package sim

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"foodsim/internal/event"
	"foodsim/internal/graph"
	"foodsim/internal/metrics"
	"foodsim/internal/model"
	"foodsim/internal/worker"
)

var (
	ErrInvalidDestination = errors.New("invalid destination")
	ErrInvalidFood        = errors.New("invalid food")
	ErrInvalidStage       = errors.New("invalid kitchen stage")
	ErrNotFound           = errors.New("not found")
)

// CreateOrder accepts an order for dest and hands it to the kitchen.
// The destination must be a vertex other than the depot; every food line must
// name a menu dish with a positive quantity.
func (s *System) CreateOrder(dest graph.VertexID, food []model.Food) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.createOrder(dest, food)
	if err != nil {
		return model.Order{}, err
	}
	return o.Clone(), nil
}

// CreateRandomOrder places an order with random dishes at a random vertex.
func (s *System) CreateRandomOrder() (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.createRandomOrder()
	if err != nil {
		return model.Order{}, err
	}
	return o.Clone(), nil
}

func (s *System) createOrder(dest graph.VertexID, food []model.Food) (*model.Order, error) {
	if dest == s.env.Depot || !s.env.Graph.HasVertex(dest) {
		return nil, fmt.Errorf("vertex %d: %w", dest, ErrInvalidDestination)
	}
	if len(food) == 0 {
		return nil, fmt.Errorf("no food: %w", ErrInvalidFood)
	}
	lines := make([]model.Food, len(food))
	for i, f := range food {
		if _, ok := model.LookupMenu(f.Name); !ok {
			return nil, fmt.Errorf("dish %q is not on the menu: %w", f.Name, ErrInvalidFood)
		}
		if f.Qty <= 0 {
			return nil, fmt.Errorf("dish %q: quantity %d: %w", f.Name, f.Qty, ErrInvalidFood)
		}
		lines[i] = model.Food{Name: f.Name, Qty: f.Qty, Status: model.FoodWaiting}
	}

	o := s.env.Orders.Create(dest, lines, s.now())
	metrics.OrdersCreated.Inc()
	s.env.Emit(event.OrderCreated, map[string]any{"order": o.ID, "destination": dest, "food": len(lines)})
	s.schedule(o.ID)
	return o, nil
}

func (s *System) createRandomOrder() (*model.Order, error) {
	var dests []graph.VertexID
	for _, v := range s.env.Graph.Vertices() {
		if v.ID != s.env.Depot {
			dests = append(dests, v.ID)
		}
	}
	if len(dests) == 0 {
		return nil, fmt.Errorf("map has no vertex besides the depot: %w", ErrInvalidDestination)
	}
	dest := dests[s.env.Rand(0, len(dests)-1)]
	return s.createOrder(dest, model.RandomFood(s.env.Rand))
}

// generate runs the automatic order generator. Each interval it draws from
// [1, window]; a hit places an order and makes the next one less likely.
func (s *System) generate(dt time.Duration) {
	if !s.auto.Enabled || s.auto.Interval <= 0 {
		return
	}
	s.autoTimer += dt
	for s.autoTimer >= s.auto.Interval {
		s.autoTimer -= s.auto.Interval
		if s.env.Rand(1, max(s.window, 1)) <= s.auto.Chance {
			if _, err := s.createRandomOrder(); err != nil {
				log.Printf("sim: auto order: %v", err)
			}
			s.window = min(s.window+s.auto.Grow, s.auto.WindowMax)
		} else {
			s.window = max(s.window-s.auto.Shrink, s.auto.WindowMin)
		}
	}
}

// SetAutoOrders switches the order generator on or off.
func (s *System) SetAutoOrders(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auto.Enabled = enabled
}

// ActivateCourier adds a courier waiting at the depot. id 0 picks the next free id.
func (s *System) ActivateCourier(id worker.ID) (worker.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activateCourier(id)
}

func (s *System) activateCourier(id worker.ID) (worker.ID, error) {
	if id == 0 {
		for _, c := range s.delivery.Couriers() {
			id = max(id, c.ID())
		}
		id++
	}
	if err := s.delivery.AddCourier(worker.NewCourier(id, s.env.Depot)); err != nil {
		return 0, err
	}
	s.env.Emit(event.WorkerAdded, map[string]any{"role": "courier", "id": id})
	return id, nil
}

// DeactivateCourier removes a courier. A courier on a route cannot be removed.
func (s *System) DeactivateCourier(id worker.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.delivery.RemoveCourier(id); err != nil {
		return err
	}
	s.env.Emit(event.WorkerRemoved, map[string]any{"role": "courier", "id": id})
	return nil
}

// ActivateKitchener adds a kitchener working stage. id 0 picks the next free id.
func (s *System) ActivateKitchener(id worker.ID, stage model.Stage) (worker.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activateKitchener(id, stage)
}

func (s *System) activateKitchener(id worker.ID, stage model.Stage) (worker.ID, error) {
	if !slices.Contains(model.Stages, stage) {
		return 0, fmt.Errorf("stage %d: %w", int(stage), ErrInvalidStage)
	}
	if id == 0 {
		for _, k := range s.kitchen.Kitcheners() {
			id = max(id, k.ID())
		}
		id++
	}
	if err := s.kitchen.AddKitchener(worker.NewKitchener(id, stage)); err != nil {
		return 0, err
	}
	s.env.Emit(event.WorkerAdded, map[string]any{"role": "kitchener", "id": id, "stage": stage.String()})
	return id, nil
}

// DeactivateKitchener removes a kitchener. A kitchener holding food cannot be removed.
func (s *System) DeactivateKitchener(id worker.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kitchen.RemoveKitchener(id); err != nil {
		return err
	}
	s.env.Emit(event.WorkerRemoved, map[string]any{"role": "kitchener", "id": id})
	return nil
}

// Package delivery batches cooked orders into courier routes and reports
// orders whose delivery finished.
package delivery

import (
	"fmt"
	"log"
	"slices"
	"time"

	"foodsim/internal/event"
	"foodsim/internal/model"
	"foodsim/internal/opt"
	"foodsim/internal/worker"
)

type Dispatcher struct {
	env      *worker.Env
	interval time.Duration
	timer    time.Duration
	pending  []model.OrderID
	active   []model.OrderID
	failed   []model.OrderID // pending set of the last failed tour search
	couriers []*worker.Courier
}

// New returns a dispatcher that looks for idle couriers every checkInterval of simulated time.
func New(env *worker.Env, checkInterval time.Duration) *Dispatcher {
	if checkInterval <= 0 {
		checkInterval = time.Second
	}
	return &Dispatcher{env: env, interval: checkInterval}
}

// Submit queues a cooked order for delivery.
func (d *Dispatcher) Submit(o *model.Order) {
	d.env.SetStatus(o, model.StatusWaitingForDelivery)
	d.pending = append(d.pending, o.ID)
}

func (d *Dispatcher) AddCourier(c *worker.Courier) error {
	if d.find(c.ID()) >= 0 {
		return fmt.Errorf("courier %d: %w", c.ID(), worker.ErrDuplicateWorker)
	}
	d.couriers = append(d.couriers, c)
	return nil
}

// RemoveCourier drops a courier that holds no route.
func (d *Dispatcher) RemoveCourier(id worker.ID) error {
	i := d.find(id)
	if i < 0 {
		return fmt.Errorf("courier %d: %w", id, worker.ErrUnknownWorker)
	}
	if d.couriers[i].Busy() {
		return fmt.Errorf("courier %d: %w", id, worker.ErrInProgress)
	}
	d.couriers = slices.Delete(d.couriers, i, i+1)
	return nil
}

func (d *Dispatcher) find(id worker.ID) int {
	return slices.IndexFunc(d.couriers, func(c *worker.Courier) bool { return c.ID() == id })
}

func (d *Dispatcher) Courier(id worker.ID) *worker.Courier {
	if i := d.find(id); i >= 0 {
		return d.couriers[i]
	}
	return nil
}

func (d *Dispatcher) Couriers() []*worker.Courier { return d.couriers }

// Pending returns a copy of the delivery queue.
func (d *Dispatcher) Pending() []model.OrderID { return append([]model.OrderID(nil), d.pending...) }

// Active returns the ids of orders out for delivery.
func (d *Dispatcher) Active() []model.OrderID { return append([]model.OrderID(nil), d.active...) }

// Tick runs the periodic route distribution, advances every courier that was
// not handed a route in this tick and returns the orders delivered so far.
func (d *Dispatcher) Tick(dt time.Duration) []model.OrderID {
	d.timer += dt
	var assigned map[worker.ID]bool
	if d.timer >= d.interval {
		d.timer %= d.interval
		assigned = d.distribute()
	}

	for _, c := range d.couriers {
		if assigned[c.ID()] {
			continue
		}
		if err := c.Update(d.env, dt); err != nil {
			log.Printf("delivery: %v", err)
		}
	}

	var done []model.OrderID
	kept := d.active[:0]
	for _, id := range d.active {
		o := d.env.Orders.Order(id)
		if o == nil {
			continue
		}
		if o.Status == model.StatusDeliveringCompleted || o.Status == model.StatusPaymentCompleted {
			done = append(done, id)
			continue
		}
		kept = append(kept, id)
	}
	d.active = kept
	return done
}

// distribute gives every idle courier one route built from the queued orders.
// A failed tour search leaves the queue untouched until the next check.
// Repeated failures for an unchanged queue are reported once.
func (d *Dispatcher) distribute() map[worker.ID]bool {
	assigned := map[worker.ID]bool{}
	budget := int(d.env.Budget / time.Second)
	now := d.env.Time()
	for _, c := range d.couriers {
		d.pending = slices.DeleteFunc(d.pending, func(id model.OrderID) bool { return d.env.Orders.Order(id) == nil })
		if len(d.pending) == 0 {
			break
		}
		if !c.Idle() {
			continue
		}

		req := opt.TourRequest{
			Depot:      d.env.Depot,
			Budget:     2 * budget,
			StopTime:   int(d.env.Courier.StopTime() / time.Second),
			PathBudget: budget,
		}
		for _, id := range d.pending {
			o := d.env.Orders.Order(id)
			req.Targets = append(req.Targets, o.Destination)
			req.Deadlines = append(req.Deadlines, int((d.env.Budget-now.Sub(o.Created))/time.Second))
		}
		tour, err := opt.FindTour(d.env.Graph, req)
		if err != nil {
			// Reported once per distinct queue; the same queue fails every check until the map or queue changes.
			if !slices.Equal(d.failed, d.pending) {
				d.failed = slices.Clone(d.pending)
				log.Printf("delivery: no tour for %d queued orders: %v", len(d.pending), err)
				d.env.Emit(event.TourFailed, map[string]any{"orders": d.Pending(), "error": err.Error()})
			}
			break
		}
		d.failed = nil

		orders := make([]model.OrderID, len(tour.Visited))
		for i, idx := range tour.Visited {
			orders[i] = d.pending[idx]
		}
		r := model.NewRoute(orders, tour.Path)
		if err := c.Assign(r); err != nil {
			log.Printf("delivery: %v", err)
			continue
		}
		d.pending = slices.DeleteFunc(d.pending, func(id model.OrderID) bool { return slices.Contains(orders, id) })
		d.active = append(d.active, orders...)
		assigned[c.ID()] = true
		d.env.Emit(event.RouteAssigned, map[string]any{
			"courier":  c.ID(),
			"route":    r.ID.String(),
			"orders":   orders,
			"fallback": tour.Fallback,
		})
	}
	return assigned
}

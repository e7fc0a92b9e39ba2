// Package sim ties the kitchen and delivery dispatchers together. A System owns
// every live order and advances the whole operation one tick at a time. All
// exported methods are safe for concurrent use; ticks and snapshots are
// serialized by one mutex.
package sim

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"foodsim/internal/config"
	"foodsim/internal/delivery"
	"foodsim/internal/event"
	"foodsim/internal/graph"
	"foodsim/internal/kitchen"
	"foodsim/internal/metrics"
	"foodsim/internal/model"
	"foodsim/internal/worker"
)

type System struct {
	mu sync.Mutex

	cfg      *config.Config
	env      *worker.Env
	kitchen  *kitchen.Kitchen
	delivery *delivery.Dispatcher

	start   time.Time
	elapsed time.Duration

	history    []model.Order
	onComplete func(model.Order)

	auto      config.AutoOrders
	autoTimer time.Duration
	window    int
}

type options struct {
	rand       worker.RandInt
	events     event.Emitter
	start      time.Time
	onComplete func(model.Order)
}

type Option func(*options)

// WithRand replaces the seeded random source.
func WithRand(r worker.RandInt) Option { return func(o *options) { o.rand = r } }

func WithEvents(e event.Emitter) Option { return func(o *options) { o.events = e } }

// WithStart sets the simulated time of the first tick.
func WithStart(t time.Time) Option { return func(o *options) { o.start = t } }

// WithArchive registers fn to receive every completed order. fn runs while the
// system is locked and must not call back into it.
func WithArchive(fn func(model.Order)) Option { return func(o *options) { o.onComplete = fn } }

// New builds the map, the initial staff and the initial orders described by cfg.
func New(cfg *config.Config, opts ...Option) (*System, error) {
	o := options{events: event.Discard}
	for _, fn := range opts {
		fn(&o)
	}
	if o.rand == nil {
		o.rand = seeded(cfg.Sim.Seed)
	}
	if o.start.IsZero() {
		o.start = time.Now().UTC().Truncate(time.Second)
	}

	g, err := graph.Build(cfg.Map.AverageSpeed, cfg.Map.Scale, cfg.Map.Vertices, cfg.Map.Edges)
	if err != nil {
		return nil, fmt.Errorf("build map: %w", err)
	}
	depot := graph.VertexID(cfg.Sim.Depot)
	if !g.HasVertex(depot) {
		return nil, fmt.Errorf("depot %d: %w", depot, graph.ErrInvalidVertex)
	}

	s := &System{
		cfg:        cfg,
		start:      o.start,
		onComplete: o.onComplete,
		auto:       cfg.Sim.AutoOrders,
		window:     cfg.Sim.AutoOrders.Window,
	}
	s.env = &worker.Env{
		Graph:     g,
		Depot:     depot,
		Courier:   cfg.Courier,
		Kitchener: cfg.Kitchener,
		Budget:    cfg.Delivery.Budget,
		Rand:      o.rand,
		Orders:    model.NewArena(),
		Events:    o.events,
		Now:       s.now,
	}
	s.kitchen = kitchen.New(s.env)
	s.env.Kitchen = s.kitchen
	s.delivery = delivery.New(s.env, cfg.Delivery.CheckInterval)

	for i := 0; i < cfg.Sim.Couriers; i++ {
		if _, err := s.activateCourier(0); err != nil {
			return nil, err
		}
	}
	staff := []struct {
		stage model.Stage
		n     int
	}{
		{model.StageDough, cfg.Sim.DoughKitcheners},
		{model.StageFilling, cfg.Sim.FillingKitcheners},
		{model.StagePicker, cfg.Sim.PickerKitcheners},
	}
	for _, st := range staff {
		for i := 0; i < st.n; i++ {
			if _, err := s.activateKitchener(0, st.stage); err != nil {
				return nil, err
			}
		}
	}
	for i := 0; i < cfg.Sim.InitialOrders; i++ {
		if _, err := s.createRandomOrder(); err != nil {
			return nil, fmt.Errorf("initial order: %w", err)
		}
	}
	return s, nil
}

func seeded(seed int64) worker.RandInt {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	return func(lo, hi int) int {
		if hi <= lo {
			return lo
		}
		return lo + r.Intn(hi-lo+1)
	}
}

func (s *System) now() time.Time { return s.start.Add(s.elapsed) }

// Now returns the simulated clock.
func (s *System) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// Depot is the vertex couriers start from and return to.
func (s *System) Depot() graph.VertexID { return s.env.Depot }

// Tick advances the simulation by dt: kitchen first, then delivery, with the
// scheduler forwarding finished orders after each.
func (s *System) Tick(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dt < 0 {
		dt = 0
	}
	s.elapsed += dt
	for _, id := range s.kitchen.Tick(dt) {
		s.schedule(id)
	}
	for _, id := range s.delivery.Tick(dt) {
		s.schedule(id)
	}
	s.generate(dt)
	s.observePhases()
}

// schedule forwards an order to whoever handles its current status.
func (s *System) schedule(id model.OrderID) {
	o := s.env.Orders.Order(id)
	if o == nil {
		log.Printf("sim: schedule: order %d not found", id)
		return
	}
	switch o.Status {
	case model.StatusAccepted:
		s.kitchen.Submit(o)
	case model.StatusCookingCompleted:
		s.delivery.Submit(o)
	case model.StatusDeliveringCompleted, model.StatusPaymentCompleted:
		s.complete(o)
	default:
		log.Printf("sim: schedule: order %d has status %s, nothing to do", id, o.Status)
	}
}

func (s *System) complete(o *model.Order) {
	now := s.now()
	s.env.SetStatus(o, model.StatusCompleted)
	o.Completed = now
	done := o.Clone()
	s.pushHistory(done)
	s.env.Orders.Remove(o.ID)

	metrics.OrdersCompleted.Inc()
	metrics.OrderLeadTime.Observe(now.Sub(o.Created).Seconds())
	s.env.Emit(event.OrderCompleted, map[string]any{"order": o.ID, "leadTime": now.Sub(o.Created).Seconds()})
	if s.onComplete != nil {
		s.onComplete(done)
	}
}

// pushHistory keeps the most recent completed orders, dropping the oldest on overflow.
func (s *System) pushHistory(o model.Order) {
	capacity := s.cfg.Sim.HistoryCapacity
	if capacity <= 0 {
		return
	}
	if len(s.history) >= capacity {
		s.history = append(s.history[:0], s.history[len(s.history)-capacity+1:]...)
	}
	s.history = append(s.history, o)
}

func (s *System) observePhases() {
	metrics.WorkerPhases.Reset()
	for _, c := range s.delivery.Couriers() {
		metrics.WorkerPhases.WithLabelValues("courier", c.Phase().String()).Inc()
	}
	for _, k := range s.kitchen.Kitcheners() {
		metrics.WorkerPhases.WithLabelValues("kitchener_"+k.Stage().String(), k.Phase().String()).Inc()
	}
}

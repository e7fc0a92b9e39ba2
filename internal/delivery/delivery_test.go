package delivery

import (
	"errors"
	"slices"
	"testing"
	"time"

	"foodsim/internal/config"
	"foodsim/internal/event"
	"foodsim/internal/graph"
	"foodsim/internal/model"
	"foodsim/internal/worker"
)

// newDispatcher builds a depot A(0,0), a customer B(200,0) reachable both ways
// and an isolated vertex C. All courier phases take their minimum, zero.
func newDispatcher(t *testing.T) (*Dispatcher, *worker.Env, *event.Recorder) {
	t.Helper()
	g := graph.New(10)
	a := g.AddVertex(0, 0)
	b := g.AddVertex(200, 0)
	g.AddVertex(400, 400)
	for _, e := range [][2]graph.VertexID{{a, b}, {b, a}} {
		if _, err := g.AddEdge(e[0], e[1], 200); err != nil {
			t.Fatal(err)
		}
	}
	rec := &event.Recorder{}
	env := &worker.Env{
		Graph: g,
		Depot: a,
		Courier: config.Courier{
			DeliveryMax: 3 * time.Minute,
			PaymentMax:  4 * time.Minute,
		},
		Budget: time.Hour,
		Rand:   func(lo, hi int) int { return lo },
		Orders: model.NewArena(),
		Events: rec,
		Now:    func() time.Time { return time.Unix(0, 0) },
	}
	d := New(env, time.Second)
	if err := d.AddCourier(worker.NewCourier(1, a)); err != nil {
		t.Fatal(err)
	}
	return d, env, rec
}

func cooked(t *testing.T, env *worker.Env, dest graph.VertexID) *model.Order {
	t.Helper()
	o := env.Orders.Create(dest, []model.Food{{Name: "Cola", Qty: 1}}, env.Time())
	for _, s := range []model.Status{model.StatusWaitingForCooking, model.StatusCooking, model.StatusCookingCompleted} {
		o.MustAdvance(s, env.Time())
	}
	return o
}

func TestSameVertexOrdersShareOneRoute(t *testing.T) {
	d, env, rec := newDispatcher(t)
	o1, o2 := cooked(t, env, 1), cooked(t, env, 1)
	d.Submit(o1)
	d.Submit(o2)

	d.Tick(500 * time.Millisecond)
	if len(d.Pending()) != 2 {
		t.Fatalf("distributed before the check interval: %v", d.Pending())
	}
	d.Tick(500 * time.Millisecond)

	r := d.Courier(1).Route()
	if r == nil {
		t.Fatalf("courier got no route")
	}
	if !slices.Equal(r.Orders, []model.OrderID{o1.ID, o2.ID}) {
		t.Fatalf("route orders = %v", r.Orders)
	}
	if len(r.Path) != 1 || r.Path[0].To != 1 {
		t.Fatalf("route path = %v", r.Path)
	}
	if len(d.Pending()) != 0 {
		t.Fatalf("pending = %v", d.Pending())
	}
	if o1.Status != model.StatusWaitingForDelivery {
		t.Fatalf("assigned courier advanced in the same tick: %s", o1.Status)
	}
	if !slices.Contains(rec.Types(), event.RouteAssigned) {
		t.Fatalf("events: %v", rec.Types())
	}
}

func TestDeliveredOrdersAreReported(t *testing.T) {
	d, env, _ := newDispatcher(t)
	o1, o2 := cooked(t, env, 1), cooked(t, env, 1)
	d.Submit(o1)
	d.Submit(o2)
	d.Tick(time.Second)

	done := d.Tick(20 * time.Second)
	if !slices.Equal(done, []model.OrderID{o1.ID, o2.ID}) {
		t.Fatalf("done = %v", done)
	}
	for _, o := range []*model.Order{o1, o2} {
		if o.Status != model.StatusDeliveringCompleted || !o.Paid {
			t.Fatalf("order %d: %s paid=%v", o.ID, o.Status, o.Paid)
		}
	}
	if len(d.Active()) != 0 {
		t.Fatalf("active = %v", d.Active())
	}
	if c := d.Courier(1); c.Phase() != worker.CourierReturning {
		t.Fatalf("courier phase = %s", c.Phase())
	}
}

func TestUnreachableOrderStaysQueued(t *testing.T) {
	d, env, rec := newDispatcher(t)
	o := cooked(t, env, 2)
	d.Submit(o)
	d.Tick(time.Second)

	if d.Courier(1).Route() != nil {
		t.Fatalf("route assigned to an unreachable vertex")
	}
	if !slices.Equal(d.Pending(), []model.OrderID{o.ID}) {
		t.Fatalf("pending = %v", d.Pending())
	}
	if !slices.Contains(rec.Types(), event.TourFailed) {
		t.Fatalf("events: %v", rec.Types())
	}
}

func TestRepeatedTourFailureReportedOnce(t *testing.T) {
	d, env, rec := newDispatcher(t)
	d.Submit(cooked(t, env, 2))
	for range 5 {
		d.Tick(time.Second)
	}
	if n := countType(rec, event.TourFailed); n != 1 {
		t.Fatalf("tour.failed emitted %d times for one stuck queue, want 1", n)
	}

	d.Submit(cooked(t, env, 2))
	d.Tick(time.Second)
	d.Tick(time.Second)
	if n := countType(rec, event.TourFailed); n != 2 {
		t.Fatalf("tour.failed emitted %d times after the queue grew, want 2", n)
	}
}

func countType(rec *event.Recorder, typ string) int {
	n := 0
	for _, t := range rec.Types() {
		if t == typ {
			n++
		}
	}
	return n
}

func TestRemoveCourierWithRoute(t *testing.T) {
	d, env, _ := newDispatcher(t)
	if err := d.AddCourier(worker.NewCourier(1, 0)); !errors.Is(err, worker.ErrDuplicateWorker) {
		t.Fatalf("duplicate add: %v", err)
	}
	d.Submit(cooked(t, env, 1))
	d.Tick(time.Second)
	if err := d.RemoveCourier(1); !errors.Is(err, worker.ErrInProgress) {
		t.Fatalf("remove busy courier: %v", err)
	}
	if err := d.RemoveCourier(9); !errors.Is(err, worker.ErrUnknownWorker) {
		t.Fatalf("remove unknown courier: %v", err)
	}
}

func TestExtraCourierStaysIdleWhenQueueDrains(t *testing.T) {
	d, env, _ := newDispatcher(t)
	if err := d.AddCourier(worker.NewCourier(2, 0)); err != nil {
		t.Fatal(err)
	}
	d.Submit(cooked(t, env, 1))
	d.Tick(time.Second)
	if d.Courier(1).Route() == nil || d.Courier(2).Route() != nil {
		t.Fatalf("routes: %v %v", d.Courier(1).Route(), d.Courier(2).Route())
	}
}

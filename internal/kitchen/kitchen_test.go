package kitchen

import (
	"errors"
	"testing"
	"time"

	"foodsim/internal/config"
	"foodsim/internal/event"
	"foodsim/internal/model"
	"foodsim/internal/worker"
)

func newKitchen(t *testing.T) (*Kitchen, *worker.Env, *event.Recorder) {
	t.Helper()
	rec := &event.Recorder{}
	env := &worker.Env{
		Kitchener: config.Kitchener{PauseChance: 0, PauseMin: time.Minute, PauseMax: 5 * time.Minute, DoughTime: 150 * time.Second},
		Rand:      func(lo, hi int) int { return lo },
		Orders:    model.NewArena(),
		Events:    rec,
	}
	k := New(env)
	env.Kitchen = k
	for i, st := range model.Stages {
		if err := k.AddKitchener(worker.NewKitchener(worker.ID(i+1), st)); err != nil {
			t.Fatalf("add kitchener: %v", err)
		}
	}
	return k, env, rec
}

func TestPizzaGoesThroughEveryStage(t *testing.T) {
	k, env, _ := newKitchen(t)
	o := env.Orders.Create(1, []model.Food{{Name: "Pepperoni", Qty: 1}}, time.Time{})
	k.Submit(o)
	if o.Status != model.StatusWaitingForCooking {
		t.Fatalf("status after submit: %s", o.Status)
	}
	if q := k.Queue(model.StageDough); len(q) != 1 {
		t.Fatalf("dough queue: %v", q)
	}

	steps := []struct {
		dt    time.Duration
		queue model.Stage
	}{
		{0, -1},
		{150 * time.Second, model.StageFilling},
		{0, -1},
		{120 * time.Second, model.StagePicker},
		{0, -1},
	}
	for i, s := range steps {
		if done := k.Tick(s.dt); len(done) != 0 {
			t.Fatalf("step %d: completed early: %v", i, done)
		}
		if s.queue >= 0 {
			if q := k.Queue(s.queue); len(q) != 1 || q[0].Order != o.ID {
				t.Fatalf("step %d: %s queue = %v", i, s.queue, q)
			}
		}
	}
	if o.Status != model.StatusCooking {
		t.Fatalf("status while cooking: %s", o.Status)
	}
	done := k.Tick(300 * time.Second)
	if len(done) != 1 || done[0] != o.ID {
		t.Fatalf("done = %v", done)
	}
	if o.Status != model.StatusCookingCompleted {
		t.Fatalf("status: %s", o.Status)
	}
	if len(k.Active()) != 0 {
		t.Fatalf("active: %v", k.Active())
	}
}

func TestDrinkAndSideStartAtTheirOwnStage(t *testing.T) {
	k, env, _ := newKitchen(t)
	o := env.Orders.Create(1, []model.Food{{Name: "Cola", Qty: 2}, {Name: "BBQ Wings", Qty: 1}}, time.Time{})
	k.Submit(o)
	if q := k.Queue(model.StagePicker); len(q) != 1 || q[0].Index != 0 {
		t.Fatalf("picker queue: %v", q)
	}
	if q := k.Queue(model.StageFilling); len(q) != 1 || q[0].Index != 1 {
		t.Fatalf("filling queue: %v", q)
	}
}

func TestAssignedKitchenerWaitsForNextTick(t *testing.T) {
	k, env, _ := newKitchen(t)
	o := env.Orders.Create(1, []model.Food{{Name: "Cola", Qty: 1}}, time.Time{})
	k.Submit(o)
	k.Tick(time.Hour)
	picker := k.Kitchener(3)
	if picker.Phase() != worker.KitchenerWaiting || picker.Food() == nil {
		t.Fatalf("picker after assignment tick: %v %v", picker.Phase(), picker.Food())
	}
	if o.Status != model.StatusWaitingForCooking {
		t.Fatalf("status: %s", o.Status)
	}
	k.Tick(10 * time.Second)
	if picker.Phase() != worker.KitchenerMaking {
		t.Fatalf("picker phase: %s", picker.Phase())
	}
}

func TestPushFrontKeepsOrderPriority(t *testing.T) {
	k, _, _ := newKitchen(t)
	k.PushFront(model.StageFilling, model.FoodRef{Order: 1})
	k.PushFront(model.StageFilling, model.FoodRef{Order: 3})
	k.PushFront(model.StageFilling, model.FoodRef{Order: 2})
	k.PushFront(model.StageFilling, model.FoodRef{Order: 5})
	k.PushFront(model.StageFilling, model.FoodRef{Order: 1, Index: 2})

	want := []model.FoodRef{{Order: 1}, {Order: 1, Index: 2}, {Order: 2}, {Order: 3}, {Order: 5}}
	got := k.Queue(model.StageFilling)
	if len(got) != len(want) {
		t.Fatalf("queue = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRemoveKitchener(t *testing.T) {
	k, env, _ := newKitchen(t)
	if err := k.AddKitchener(worker.NewKitchener(1, model.StageDough)); !errors.Is(err, worker.ErrDuplicateWorker) {
		t.Fatalf("duplicate add: %v", err)
	}
	if err := k.RemoveKitchener(42); !errors.Is(err, worker.ErrUnknownWorker) {
		t.Fatalf("unknown remove: %v", err)
	}

	o := env.Orders.Create(1, []model.Food{{Name: "Water", Qty: 1}}, time.Time{})
	k.Submit(o)
	k.Tick(0)
	if err := k.RemoveKitchener(3); !errors.Is(err, worker.ErrInProgress) {
		t.Fatalf("busy remove: %v", err)
	}
	if err := k.RemoveKitchener(1); err != nil {
		t.Fatalf("idle remove: %v", err)
	}
	if k.Kitchener(1) != nil || len(k.Kitcheners()) != 2 {
		t.Fatalf("kitcheners after remove: %d", len(k.Kitcheners()))
	}
}

func TestPhaseEventsCarryStage(t *testing.T) {
	k, env, rec := newKitchen(t)
	o := env.Orders.Create(1, []model.Food{{Name: "Water", Qty: 1}}, time.Time{})
	k.Submit(o)
	k.Tick(0)
	k.Tick(time.Minute)
	var found bool
	for _, e := range rec.Events {
		if e.Type == event.KitchenerPhase && e.Data["to"] == "making" {
			found = e.Data["stage"] == "picker"
		}
	}
	if !found {
		t.Fatalf("no making event for picker: %v", rec.Types())
	}
}

// Package kitchen dispatches food lines to kitcheners through the dough,
// filling and picker queues and reports orders whose food is all done.
package kitchen

import (
	"fmt"
	"log"
	"slices"
	"time"

	"foodsim/internal/model"
	"foodsim/internal/worker"
)

type Kitchen struct {
	env        *worker.Env
	queues     map[model.Stage][]model.FoodRef
	active     []model.OrderID
	kitcheners []*worker.Kitchener
}

func New(env *worker.Env) *Kitchen {
	return &Kitchen{env: env, queues: map[model.Stage][]model.FoodRef{}}
}

// Submit takes a new order: it starts waiting for cooking and every food line
// joins the back of its entry queue.
func (k *Kitchen) Submit(o *model.Order) {
	k.env.SetStatus(o, model.StatusWaitingForCooking)
	k.active = append(k.active, o.ID)
	for i, f := range o.Food {
		stage := f.Item().Type.EntryStage()
		k.queues[stage] = append(k.queues[stage], model.FoodRef{Order: o.ID, Index: i})
	}
}

// PushFront queues ref ahead of every item belonging to a later order, so food
// moving between stages is not overtaken by newer orders.
func (k *Kitchen) PushFront(stage model.Stage, ref model.FoodRef) {
	q := k.queues[stage]
	i := slices.IndexFunc(q, func(r model.FoodRef) bool { return r.Order > ref.Order })
	if i < 0 {
		i = len(q)
	}
	k.queues[stage] = slices.Insert(q, i, ref)
}

func (k *Kitchen) AddKitchener(kt *worker.Kitchener) error {
	if k.find(kt.ID()) >= 0 {
		return fmt.Errorf("kitchener %d: %w", kt.ID(), worker.ErrDuplicateWorker)
	}
	k.kitcheners = append(k.kitcheners, kt)
	return nil
}

// RemoveKitchener drops an idle kitchener. A kitchener holding food cannot be removed.
func (k *Kitchen) RemoveKitchener(id worker.ID) error {
	i := k.find(id)
	if i < 0 {
		return fmt.Errorf("kitchener %d: %w", id, worker.ErrUnknownWorker)
	}
	if k.kitcheners[i].Busy() {
		return fmt.Errorf("kitchener %d: %w", id, worker.ErrInProgress)
	}
	k.kitcheners = slices.Delete(k.kitcheners, i, i+1)
	return nil
}

func (k *Kitchen) find(id worker.ID) int {
	return slices.IndexFunc(k.kitcheners, func(kt *worker.Kitchener) bool { return kt.ID() == id })
}

func (k *Kitchen) Kitchener(id worker.ID) *worker.Kitchener {
	if i := k.find(id); i >= 0 {
		return k.kitcheners[i]
	}
	return nil
}

func (k *Kitchen) Kitcheners() []*worker.Kitchener { return k.kitcheners }

// Tick assigns queued food to idle kitcheners, advances the rest by dt and
// returns the orders whose cooking completed during this tick.
func (k *Kitchen) Tick(dt time.Duration) []model.OrderID {
	assigned := map[worker.ID]bool{}
	for _, kt := range k.kitcheners {
		if !kt.Idle() {
			continue
		}
		q := k.queues[kt.Stage()]
		if len(q) == 0 {
			continue
		}
		if err := kt.Assign(q[0]); err != nil {
			log.Printf("kitchen: assign: %v", err)
			continue
		}
		k.queues[kt.Stage()] = q[1:]
		assigned[kt.ID()] = true
	}

	for _, kt := range k.kitcheners {
		if assigned[kt.ID()] {
			continue
		}
		if err := kt.Update(k.env, dt); err != nil {
			log.Printf("kitchen: %v", err)
		}
	}

	var done []model.OrderID
	kept := k.active[:0]
	for _, id := range k.active {
		o := k.env.Orders.Order(id)
		if o == nil {
			continue
		}
		if o.Status == model.StatusCooking && o.FoodDone() {
			k.env.SetStatus(o, model.StatusCookingCompleted)
			done = append(done, id)
			continue
		}
		kept = append(kept, id)
	}
	k.active = kept
	return done
}

// Queue returns a copy of the queue for stage.
func (k *Kitchen) Queue(stage model.Stage) []model.FoodRef {
	return append([]model.FoodRef(nil), k.queues[stage]...)
}

// Active returns the ids of orders currently in the kitchen.
func (k *Kitchen) Active() []model.OrderID {
	return append([]model.OrderID(nil), k.active...)
}

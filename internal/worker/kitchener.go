package worker

import (
	"fmt"
	"time"

	"foodsim/internal/event"
	"foodsim/internal/model"
)

type KitchenerPhase int

const (
	KitchenerInaccessible KitchenerPhase = iota
	KitchenerWaiting
	KitchenerMaking
)

func (p KitchenerPhase) String() string {
	switch p {
	case KitchenerInaccessible:
		return "inaccessible"
	case KitchenerWaiting:
		return "waiting"
	case KitchenerMaking:
		return "making"
	}
	return fmt.Sprintf("kitchener_phase(%d)", int(p))
}

func (p KitchenerPhase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

type kitchenerState interface {
	phase() KitchenerPhase
	enter(k *Kitchener, env *Env) error
	update(k *Kitchener, env *Env, dt time.Duration) (kitchenerState, time.Duration, error)
}

var (
	kitchenerInaccessible kitchenerState = kInaccessibleState{}
	kitchenerWaiting      kitchenerState = kWaitingState{}
	kitchenerMaking       kitchenerState = kMakingState{}
)

// Kitchener works one stage of the kitchen pipeline, one food line at a time.
type Kitchener struct {
	id      ID
	stage   model.Stage
	state   kitchenerState
	entered bool
	elapsed time.Duration
	target  time.Duration
	food    *model.FoodRef
}

// NewKitchener returns a kitchener waiting for work.
func NewKitchener(id ID, stage model.Stage) *Kitchener {
	return &Kitchener{id: id, stage: stage, state: kitchenerWaiting}
}

func (k *Kitchener) ID() ID                { return k.id }
func (k *Kitchener) Stage() model.Stage    { return k.stage }
func (k *Kitchener) Phase() KitchenerPhase { return k.state.phase() }
func (k *Kitchener) Food() *model.FoodRef  { return k.food }
func (k *Kitchener) Idle() bool            { return k.state == kitchenerWaiting && k.food == nil }
func (k *Kitchener) Busy() bool            { return k.food != nil }

// Assign gives an idle kitchener a food line to make.
func (k *Kitchener) Assign(ref model.FoodRef) error {
	if !k.Idle() {
		return fmt.Errorf("kitchener %d is %s: %w", k.id, k.Phase(), ErrPreconditionViolated)
	}
	k.food = &ref
	return nil
}

func (k *Kitchener) Update(env *Env, dt time.Duration) error {
	for {
		if !k.entered {
			k.entered = true
			k.elapsed, k.target = 0, 0
			if err := k.state.enter(k, env); err != nil {
				return fmt.Errorf("kitchener %d entering %s: %w", k.id, k.Phase(), err)
			}
		}
		next, rest, err := k.state.update(k, env, dt)
		if err != nil {
			return fmt.Errorf("kitchener %d in %s: %w", k.id, k.Phase(), err)
		}
		if next == nil {
			return nil
		}
		env.Emit(event.KitchenerPhase, map[string]any{"kitchener": k.id, "stage": k.stage.String(), "from": k.Phase().String(), "to": next.phase().String()})
		k.state = next
		k.entered = false
		dt = rest
	}
}

type KitchenerView struct {
	ID      ID             `json:"id"`
	Stage   model.Stage    `json:"stage"`
	Phase   KitchenerPhase `json:"phase"`
	Food    *model.FoodRef `json:"food,omitempty"`
	Elapsed time.Duration  `json:"elapsed"`
	Target  time.Duration  `json:"target"`
}

func (k *Kitchener) View() KitchenerView {
	v := KitchenerView{ID: k.id, Stage: k.stage, Phase: k.Phase(), Elapsed: k.elapsed, Target: k.target}
	if k.food != nil {
		ref := *k.food
		v.Food = &ref
	}
	return v
}

func (k *Kitchener) foodLine(env *Env) (*model.Order, *model.Food, error) {
	if k.food == nil {
		return nil, nil, ErrPreconditionViolated
	}
	o, err := env.order(k.food.Order)
	if err != nil {
		return nil, nil, err
	}
	if k.food.Index < 0 || k.food.Index >= len(o.Food) {
		return nil, nil, fmt.Errorf("order %d has no food line %d: %w", o.ID, k.food.Index, ErrPreconditionViolated)
	}
	return o, &o.Food[k.food.Index], nil
}

// makingTime is how long k's stage takes for f. The filling stage of a pizza
// excludes the time already spent on the dough.
func (k *Kitchener) makingTime(env *Env, f *model.Food) time.Duration {
	item := f.Item()
	switch k.stage {
	case model.StageDough:
		return env.Kitchener.DoughTime
	case model.StageFilling:
		d := item.Prep
		if item.Type == model.Pizza {
			d -= env.Kitchener.DoughTime
		}
		return max(d, 0)
	default:
		return item.Cook
	}
}

type kInaccessibleState struct{}

func (kInaccessibleState) phase() KitchenerPhase { return KitchenerInaccessible }

func (kInaccessibleState) enter(k *Kitchener, env *Env) error {
	if k.food != nil {
		return ErrPreconditionViolated
	}
	p := env.Kitchener
	k.target = env.pause(p.PauseChance, p.PauseMin, p.PauseMax, p.ShortPause)
	return nil
}

func (kInaccessibleState) update(k *Kitchener, env *Env, dt time.Duration) (kitchenerState, time.Duration, error) {
	if done, rest := timed(&k.elapsed, k.target, dt); done {
		return kitchenerWaiting, rest, nil
	}
	return nil, 0, nil
}

type kWaitingState struct{}

func (kWaitingState) phase() KitchenerPhase { return KitchenerWaiting }

func (kWaitingState) enter(k *Kitchener, env *Env) error { return nil }

func (kWaitingState) update(k *Kitchener, env *Env, dt time.Duration) (kitchenerState, time.Duration, error) {
	if k.food != nil {
		return kitchenerMaking, dt, nil
	}
	k.elapsed += dt
	return nil, 0, nil
}

type kMakingState struct{}

func (kMakingState) phase() KitchenerPhase { return KitchenerMaking }

func (kMakingState) enter(k *Kitchener, env *Env) error {
	o, f, err := k.foodLine(env)
	if err != nil {
		return err
	}
	f.Status = model.FoodMaking
	if o.Status == model.StatusWaitingForCooking {
		env.SetStatus(o, model.StatusCooking)
	}
	k.target = k.makingTime(env, f)
	return nil
}

func (kMakingState) update(k *Kitchener, env *Env, dt time.Duration) (kitchenerState, time.Duration, error) {
	done, rest := timed(&k.elapsed, k.target, dt)
	if !done {
		return nil, 0, nil
	}
	_, f, err := k.foodLine(env)
	if err != nil {
		return nil, 0, err
	}
	ref := *k.food
	k.food = nil
	switch k.stage {
	case model.StageDough:
		f.Status = model.FoodWaiting
		env.Kitchen.PushFront(model.StageFilling, ref)
	case model.StageFilling:
		f.Status = model.FoodWaiting
		env.Kitchen.PushFront(model.StagePicker, ref)
	default:
		f.Status = model.FoodDone
	}
	return kitchenerInaccessible, rest, nil
}

package model

import (
	"fmt"
	"sort"
	"time"
)

type FoodType int

const (
	Pizza FoodType = iota
	Sides
	Drinks
)

func (t FoodType) String() string {
	switch t {
	case Pizza:
		return "pizza"
	case Sides:
		return "sides"
	case Drinks:
		return "drinks"
	}
	return fmt.Sprintf("food_type(%d)", int(t))
}

func (t FoodType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Stage is a step of the kitchen pipeline and the speciality of a kitchener.
type Stage int

const (
	StageDough Stage = iota
	StageFilling
	StagePicker
)

var Stages = []Stage{StageDough, StageFilling, StagePicker}

func (s Stage) String() string {
	switch s {
	case StageDough:
		return "dough"
	case StageFilling:
		return "filling"
	case StagePicker:
		return "picker"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseStage(v string) (Stage, error) {
	for _, s := range Stages {
		if s.String() == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown kitchen stage %q", v)
}

// EntryStage is the first pipeline stage food of type t goes through.
func (t FoodType) EntryStage() Stage {
	switch t {
	case Pizza:
		return StageDough
	case Sides:
		return StageFilling
	default:
		return StagePicker
	}
}

type FoodStatus int

const (
	FoodWaiting FoodStatus = iota
	FoodMaking
	FoodDone
)

func (s FoodStatus) String() string {
	switch s {
	case FoodWaiting:
		return "waiting"
	case FoodMaking:
		return "making"
	case FoodDone:
		return "done"
	}
	return fmt.Sprintf("food_status(%d)", int(s))
}

func (s FoodStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *FoodStatus) UnmarshalText(b []byte) error {
	for _, v := range []FoodStatus{FoodWaiting, FoodMaking, FoodDone} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown food status %q", b)
}

// MenuItem is a dish with its preparation and cooking times.
type MenuItem struct {
	Name string        `json:"name"`
	Type FoodType      `json:"type"`
	Prep time.Duration `json:"prep"`
	Cook time.Duration `json:"cook"`
}

var menu = map[string]MenuItem{}

// MenuNames lists every dish in menu order.
var MenuNames []string

func init() {
	add := func(name string, t FoodType, prep, cook int) {
		menu[name] = MenuItem{Name: name, Type: t, Prep: time.Duration(prep) * time.Second, Cook: time.Duration(cook) * time.Second}
		MenuNames = append(MenuNames, name)
	}
	add("Pepperoni", Pizza, 270, 300)
	add("Pepperoni Fresh", Pizza, 300, 300)
	add("Double Pepperoni", Pizza, 290, 300)
	add("Chicken BBQ", Pizza, 300, 300)
	add("Hawaiian", Pizza, 380, 300)
	add("4 Cheese", Pizza, 240, 300)
	add("Vegan Hot", Pizza, 340, 300)
	add("Classic Wings", Sides, 50, 360)
	add("BBQ Wings", Sides, 60, 360)
	add("Teriyaki Wings", Sides, 90, 360)
	add("Vegan Nuggets", Sides, 50, 160)
	add("Chicken Strips", Sides, 60, 310)
	add("Cola", Drinks, 0, 30)
	add("Citrus Juice", Drinks, 0, 30)
	add("Water", Drinks, 0, 30)
}

func LookupMenu(name string) (MenuItem, bool) {
	m, ok := menu[name]
	return m, ok
}

// Menu returns all dishes ordered by type then name.
func Menu() []MenuItem {
	out := make([]MenuItem, 0, len(menu))
	for _, m := range menu {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Food is one line of an order.
type Food struct {
	Name   string     `json:"name"`
	Qty    int        `json:"qty"`
	Status FoodStatus `json:"status"`
}

// Item returns the menu entry of f. Unknown names are rejected when the order is created.
func (f Food) Item() MenuItem { return menu[f.Name] }

// FoodRef identifies one food line of an order held in the arena.
type FoodRef struct {
	Order OrderID `json:"orderId"`
	Index int     `json:"index"`
}

// RandomFood draws 1..6 dishes, skipping repeats, each with quantity 1..3.
func RandomFood(randInt func(lo, hi int) int) []Food {
	var out []Food
	n := randInt(1, 6)
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		name := MenuNames[randInt(0, len(MenuNames)-1)]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Food{Name: name, Qty: randInt(1, 3)})
	}
	return out
}

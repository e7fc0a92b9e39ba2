// Package runner drives a simulation from the wall clock.
package runner

import (
	"sync"
	"time"

	"foodsim/internal/metrics"
)

// Ticker is the part of the simulation the runner drives.
type Ticker interface {
	Tick(dt time.Duration)
}

// Runner advances the simulation every Interval of wall time by
// Interval times the speed factor.
type Runner struct {
	Sim      Ticker
	Interval time.Duration
	Stop     chan struct{}

	mu     sync.Mutex
	speed  int
	paused bool
	ticks  uint64
	done   chan struct{}
}

func New(sim Ticker, interval time.Duration, speed int) *Runner {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Runner{Sim: sim, Interval: interval, Stop: make(chan struct{}), speed: max(speed, 1), done: make(chan struct{})}
}

func (r *Runner) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Stop:
				return
			case <-ticker.C:
				r.Step()
			}
		}
	}()
}

// Close stops the loop and waits for the current tick to finish.
func (r *Runner) Close() {
	close(r.Stop)
	<-r.done
}

// Step runs one tick unless the runner is paused.
func (r *Runner) Step() {
	r.mu.Lock()
	if r.paused {
		r.mu.Unlock()
		return
	}
	dt := r.Interval * time.Duration(r.speed)
	r.ticks++
	r.mu.Unlock()

	r.Sim.Tick(dt)
	metrics.SimTicks.Inc()
}

// State is the externally visible clock setting.
type State struct {
	Interval time.Duration `json:"interval"`
	Speed    int           `json:"speed"`
	Paused   bool          `json:"paused"`
	Ticks    uint64        `json:"ticks"`
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{Interval: r.Interval, Speed: r.speed, Paused: r.paused, Ticks: r.ticks}
}

// SetSpeed changes how much simulated time passes per tick. Values below 1 are ignored.
func (r *Runner) SetSpeed(speed int) {
	if speed < 1 {
		return
	}
	r.mu.Lock()
	r.speed = speed
	r.mu.Unlock()
}

func (r *Runner) SetPaused(paused bool) {
	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()
}

// Package tasks implements the single worker-goroutine dispatcher that
// serializes every event callback and opcode handler onto one goroutine,
// the same way the original server funnels everything through one
// dispatcher thread rather than locking shared game state from many
// goroutines.
package tasks

import (
	"sync"
	"time"
)

// Func is the unit of work a Task wraps.
type Func func()

// Task is a unit of dispatcher work with an optional expiration. A task
// whose deadline has already passed by the time the dispatcher reaches it
// is dropped without running, matching Task::hasExpired.
type Task struct {
	fn         Func
	expiration time.Time // zero value means "never expires"
}

// New returns a Task with no expiration.
func New(fn Func) *Task {
	return &Task{fn: fn}
}

// NewWithExpiration returns a Task dropped if not picked up within d.
func NewWithExpiration(d time.Duration, fn Func) *Task {
	return &Task{fn: fn, expiration: time.Now().Add(d)}
}

func (t *Task) hasExpired() bool {
	return !t.expiration.IsZero() && time.Now().After(t.expiration)
}

// Dispatcher runs queued tasks, in FIFO order, one at a time, on a single
// goroutine. Producers from any goroutine call Add; only the goroutine
// running Run ever executes a task body, so callbacks registered through
// internal/events never need their own locking.
type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*Task
	running bool
	cycle   uint64
}

// NewDispatcher returns a dispatcher that accepts tasks right away; they
// run once Run is started.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{running: true}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Cycle returns the number of tasks executed so far. Exposed for
// diagnostics, mirroring Dispatcher::getDispatcherCycle.
func (d *Dispatcher) Cycle() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycle
}

// Add enqueues a task, waking the worker if the queue was empty. Tasks
// added after Shutdown are silently discarded, same as addTask seeing a
// non-Running state.
func (d *Dispatcher) Add(t *Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	wasEmpty := len(d.queue) == 0
	d.queue = append(d.queue, t)
	if wasEmpty {
		d.cond.Signal()
	}
}

// Run executes queued tasks until Shutdown is called, swapping the whole
// queue out under the lock and then running it unlocked so producers
// never block behind a slow task. Call Run from the single goroutine this
// dispatcher owns; it returns once Shutdown's sentinel task has run.
func (d *Dispatcher) Run() {
	var batch []*Task
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && d.running {
			d.cond.Wait()
		}
		if !d.running && len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch, d.queue = d.queue, nil
		d.mu.Unlock()

		for _, t := range batch {
			if !t.hasExpired() {
				d.mu.Lock()
				d.cycle++
				d.mu.Unlock()
				t.fn()
			}
		}
	}
}

// Shutdown enqueues a terminal task that flips the running flag off and
// wakes the worker, so Run drains whatever is already queued and then
// returns. Mirrors Dispatcher::shutdown's use of a regular task to carry
// the state transition onto the worker goroutine itself.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, New(func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}))
	d.cond.Signal()
}

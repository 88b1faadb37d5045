package coro

import (
	"sync/atomic"
)

// coState is the coroutine lifecycle from spec.md §3: a handle is in
// exactly one of these states at a time.
type coState int32

const (
	stateReady coState = iota
	stateRunning
	stateParked
	stateFinished
	stateReaped
)

var nextCoID atomic.Uint64

// Coroutine is the scheduler-owned handle described in spec.md §3: an
// identity, an owned stack executor, a cancel controller, a park slot
// that receives unpark signals, and a one-shot join slot.
//
// Application code never holds a *Coroutine directly: JoinHandle.Coroutine
// and Current return a *CoroutineRef wrapping it.
type Coroutine struct {
	id   uint64
	name string

	exec    *stackExecutor
	yieldFn func(EventSource)

	cancel cancelController
	park   parkSlot
	join   joinSlot

	state atomic.Int32

	// homeWorker is a worker index recorded at creation. SpawnWith passes
	// -1 and nothing reads it, so a coroutine is not pinned to a worker,
	// even when work-stealing is disabled.
	homeWorker int

	// runningOn is set by the worker loop immediately before resume()
	// and read by EventSource.Subscribe implementations (which run
	// synchronously on that same worker, invariant I3) to register
	// timers and reschedule locally without a second lookup mechanism.
	runningOn *worker
}

// ID returns the coroutine's monotonically increasing identity.
func (c *Coroutine) ID() uint64 { return c.id }

// Name returns the coroutine's name, or "" if it was not given one via
// Builder.Name.
func (c *Coroutine) Name() string { return c.name }

func (c *Coroutine) loadState() coState { return coState(c.state.Load()) }
func (c *Coroutine) storeState(s coState) { c.state.Store(int32(s)) }

// newCoroutine allocates a handle and wires its executor so that the
// user closure f runs with "current coroutine" set for its entire life,
// cancellation observed via checkCancel before it starts, and its return
// value or panic captured into the join slot on termination.
func newCoroutine(name string, homeWorker int, f func() any) *Coroutine {
	co := &Coroutine{
		id:         nextCoID.Add(1),
		name:       name,
		homeWorker: homeWorker,
	}
	co.state.Store(int32(stateReady))

	co.exec = newStackExecutor(func(yield func(EventSource)) {
		co.yieldFn = yield
		setCurrent(co)
		defer clearCurrent()

		co.cancel.checkCancel()
		v := f()
		co.join.complete(v)
	})

	return co
}

// resume runs the coroutine until its next suspension or termination. It
// must only be called by the worker that currently owns the handle
// (invariant I3).
func (c *Coroutine) resume() (terminated bool) {
	c.storeState(stateRunning)
	out := c.exec.resume()
	if out.terminated {
		c.storeState(stateFinished)
		if out.panicVal != nil {
			if cancelled, ok := out.panicVal.(Cancelled); ok {
				c.join.completeCancelled(cancelled)
			} else {
				c.join.completePanic(out.panicVal, out.panicStack)
			}
		}
		return true
	}
	out.source.Subscribe(c)
	return false
}

package coro

import "time"

// CoroutineRef is a handle to a coroutine exposed to code that does not
// own its JoinHandle — the public surface for Cancel and Unpark.
type CoroutineRef struct {
	co *Coroutine
}

// Current returns a reference to the calling coroutine, or nil if called
// outside a coroutine (IsCoroutine reports false).
func Current() *CoroutineRef {
	co := current()
	if co == nil {
		return nil
	}
	return &CoroutineRef{co: co}
}

// ID returns the referenced coroutine's identity.
func (r *CoroutineRef) ID() uint64 { return r.co.ID() }

// Name returns the referenced coroutine's name.
func (r *CoroutineRef) Name() string { return r.co.Name() }

// Cancel asynchronously requests the coroutine to unwind, per spec.md
// §4.6. The request is observed the next time the coroutine reaches a
// yield point; it is idempotent (invariant I5) and does not block.
func (r *CoroutineRef) Cancel() {
	r.co.cancel.cancel(r.co, ErrCancelled)
}

// Unpark wakes the coroutine if it is parked, or records a pending
// unpark token it will consume on its next Park call (invariant I4).
// Unpark never blocks.
func (r *CoroutineRef) Unpark() {
	if co := r.co.park.unpark(); co != nil {
		globalScheduler().scheduleDirect(co)
	}
}

// parkEvent is the EventSource used by Park: it stores the coroutine in
// slot, or reschedules it immediately if an unpark already arrived.
type parkEvent struct {
	slot *parkSlot
}

func (e parkEvent) Subscribe(co *Coroutine) {
	if immediatelyReady := e.slot.park(co); immediatelyReady {
		rescheduleLocal(co)
	}
}

// Park suspends the calling coroutine until it is unparked, per spec.md
// §4.7. If Unpark was already called since the last Park (and not yet
// consumed), Park returns immediately.
func Park() {
	co := requireCurrent("Park")
	co.cancel.checkCancel()
	co.cancel.setPark(&co.park)
	yieldWith(parkEvent{slot: &co.park})
	co.cancel.clearPark()
	co.cancel.checkCancel()
}

// parkTimeoutEvent additionally registers a timer that, on firing, claims
// the park slot and reschedules the coroutine with a timed-out result,
// distinguishable from a normal unpark.
type parkTimeoutEvent struct {
	slot    *parkSlot
	dur     time.Duration
	timedOut *bool
}

func (e parkTimeoutEvent) Subscribe(co *Coroutine) {
	if immediatelyReady := e.slot.park(co); immediatelyReady {
		rescheduleLocal(co)
		return
	}
	co.runningOn.timers.add(e.dur, func() {
		if taken := e.slot.take(); taken != nil {
			*e.timedOut = true
			globalScheduler().scheduleDirect(taken)
		}
	})
}

// ParkTimeout suspends the calling coroutine until it is unparked or dur
// elapses, whichever comes first. It reports true if the timeout fired
// before an unpark arrived.
func ParkTimeout(dur time.Duration) (timedOut bool) {
	co := requireCurrent("ParkTimeout")
	co.cancel.checkCancel()
	co.cancel.setPark(&co.park)
	var out bool
	yieldWith(parkTimeoutEvent{slot: &co.park, dur: dur, timedOut: &out})
	co.cancel.clearPark()
	co.cancel.checkCancel()
	return out
}

// Sleep suspends the calling coroutine for at least dur, implemented as
// ParkTimeout on a park slot nobody ever unparks (spec.md §4.7).
func Sleep(dur time.Duration) {
	co := requireCurrent("Sleep")
	co.cancel.checkCancel()
	slot := &parkSlot{}
	co.cancel.setPark(slot)
	var out bool
	yieldWith(parkTimeoutEvent{slot: slot, dur: dur, timedOut: &out})
	co.cancel.clearPark()
	co.cancel.checkCancel()
}

// DisableCancel increments the calling coroutine's cancel-disable depth:
// while depth is non-zero, checkCancel is a no-op, but a pending cancel
// request stays latched and fires the moment EnableCancel returns the
// depth to zero. Calls nest (spec.md §4.6).
func DisableCancel() {
	requireCurrent("DisableCancel").cancel.disableCancel()
}

// EnableCancel decrements the calling coroutine's cancel-disable depth.
func EnableCancel() {
	requireCurrent("EnableCancel").cancel.enableCancel()
}

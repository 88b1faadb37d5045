package coro

import (
	"sync/atomic"
)

const (
	cancelRequestedBit = 1
	cancelDisableUnit  = 2
)

// ioCanceller is implemented by an event source that has registered an
// outstanding kernel I/O operation and knows how to ask the kernel to
// cancel it. It mirrors original_source's CancelIo trait.
type ioCanceller interface {
	cancelIO() bool // true if cancellation was requested (result still arrives async)
}

// cancelController is the per-coroutine cancel state from spec.md §3: a
// single atomic word (bit 0 = cancel-requested, bits 1+ = disable depth)
// plus two side-slots recording whatever the coroutine is currently
// suspended on. At most one of the side-slots is ever populated
// (invariant I2): a coroutine doing I/O registers ioSlot; a coroutine
// parked on a parkSlot registers coSlot.
//
// Grounded directly on original_source/src/cancel.rs's CancelImpl.
type cancelController struct {
	state atomic.Uint64

	ioSlot atomicSlot[ioCancelEntry]
	coSlot atomicSlot[parkSlot]

	// cause records what Cancel() was called with so the eventual
	// Cancelled panic can report it.
	cause atomic.Pointer[error]
}

// ioCancelEntry wraps a registered ioCanceller so it can be stored in the
// atomic ioSlot; cancel() calls its cancelIO, and falls back to the park
// side-slot when cancelIO reports that nothing was cancelled.
type ioCancelEntry struct {
	canceller ioCanceller
}

func (c *cancelController) isCancelled() bool {
	return c.state.Load()&cancelRequestedBit != 0
}

func (c *cancelController) isDisabled() bool {
	return c.state.Load() >= cancelDisableUnit
}

// disableCancel increments the disable depth; check_cancel is inert while
// the depth is non-zero, but a pending request stays latched and fires as
// soon as the depth returns to zero (nested critical sections compose).
func (c *cancelController) disableCancel() {
	c.state.Add(cancelDisableUnit)
}

func (c *cancelController) enableCancel() {
	c.state.Add(^uint64(cancelDisableUnit - 1)) // two's-complement -cancelDisableUnit
}

// checkCancel panics with Cancelled if cancellation is requested and
// enabled. It does not check whether the calling goroutine is already
// unwinding from an earlier panic, so a deferred function that reaches it
// during an unwind panics again.
// Called before every syscall retry inside I/O event sources and on every
// park attempt, per spec.md §4.6.
func (c *cancelController) checkCancel() {
	s := c.state.Load()
	if s&cancelRequestedBit == 0 || s >= cancelDisableUnit {
		return
	}
	triggerCancelPanic(c.cause.Load())
}

func triggerCancelPanic(cause *error) {
	var err error
	if cause != nil {
		err = *cause
	} else {
		err = ErrCancelled
	}
	panic(Cancelled{Cause: err})
}

// setIO registers an outstanding I/O operation's canceller. Must not be
// called while coSlot is populated (invariant I2); event sources enforce
// this by construction since an I/O wait and a park are never concurrent
// for the same coroutine.
func (c *cancelController) setIO(ioc ioCanceller) {
	c.ioSlot.store(&ioCancelEntry{canceller: ioc})
}

func (c *cancelController) clearIO() {
	c.ioSlot.clear()
}

// setPark registers the parkSlot the coroutine is about to suspend on.
func (c *cancelController) setPark(slot *parkSlot) {
	c.coSlot.store(slot)
}

func (c *cancelController) clearPark() {
	c.coSlot.clear()
}

// cancel implements spec.md §4.6's cancel(): set the request bit, then
// either ask the outstanding kernel I/O to cancel, or reclaim a parked
// coroutine and reschedule it directly so the resumed coroutine observes
// the request at its next checkCancel.
func (c *cancelController) cancel(h *Coroutine, cause error) {
	if cause == nil {
		cause = ErrCancelled
	}
	c.cause.CompareAndSwap(nil, &cause)

	alreadyRequested := false
	for {
		old := c.state.Load()
		if old&cancelRequestedBit != 0 {
			alreadyRequested = true
			break
		}
		if c.state.CompareAndSwap(old, old|cancelRequestedBit) {
			break
		}
	}
	if alreadyRequested {
		// idempotent: already requested (invariant I5), nothing more to do.
		return
	}

	if entry := c.ioSlot.load(); entry != nil {
		if entry.canceller.cancelIO() {
			// kernel cancellation requested; completion will arrive
			// asynchronously and drive the normal resumption path.
			return
		}
	}

	if slot := c.coSlot.take(); slot != nil {
		if co := slot.take(); co != nil {
			globalScheduler().scheduleDirect(co)
		}
	}
}

// reset clears the cancel state for reuse. Never called on a coroutine
// that has already observed a Cancelled panic: per spec.md §9 "open
// questions", the cancel bit is intentionally left set after a Cancel
// panic so any further coroutine API call re-panics.
func (c *cancelController) reset() {
	c.state.Store(0)
	c.ioSlot.clear()
	c.coSlot.clear()
	c.cause.Store(nil)
}

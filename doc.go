// Package coro implements a stackful M:N coroutine runtime.
//
// coro lets application code spawn lightweight, cooperatively scheduled
// tasks ("coroutines") that each run on their own logical stack, park and
// unpark each other, and be cancelled from another goroutine at any
// suspension point. The readiness- and completion-based I/O protocols that
// suspend a coroutine until the kernel reports an event are implemented
// internally; the package exports no I/O operations built on them.
//
// The coroutine protocol
//
// A coroutine is spawned with Spawn (or a Builder, or within a Scope). Its
// closure runs on an independent goroutine that the scheduler treats as a
// single schedulable unit: it is resumed by a worker, and it runs until it
// either returns or calls a suspension point (YieldNow, Park, ParkTimeout,
// Sleep, or a syscall retry loop built on a registered file descriptor's
// readiness events). At a suspension point, control returns to the
// worker, which moves on to the next ready
// coroutine; the suspended one is re-scheduled later by an unpark, a timer
// firing, or a kernel readiness/completion event.
//
// Unlike goroutines, coroutines are never preempted mid-computation by this
// package; they only ever suspend at an explicit yield point. See
// Scheduler for the worker loop and work-stealing policy, and Cancel for
// how asynchronous cancellation is delivered at those same yield points.
//
// Cancellation
//
// Calling a coroutine's Cancel method asynchronously requests it to unwind.
// The request is observed the next time the coroutine reaches a yield
// point (a park attempt or a syscall retry inside an I/O event source),
// at which point the coroutine's goroutine panics with the distinguished
// Cancelled sentinel. The panic unwinds the coroutine's stack like any
// other Go panic, running deferred cleanup, and is captured (not
// propagated to the worker) by JoinHandle.Join.
//
// Global state
//
// Exactly two pieces of process-wide state exist: the default Scheduler,
// created lazily on the first call to Spawn and never destroyed, and a
// goroutine-local "current coroutine" pointer used by Current, Park, and
// Cancel-checking code to find the coroutine they are running on behalf
// of. Outside of a coroutine, that pointer is nil and IsCoroutine reports
// false.
package coro

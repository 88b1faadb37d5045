package coro

import "runtime/debug"

// resumeOutcome is what a stack executor hands back to whoever resumed it:
// either an EventSource describing how the coroutine wants to be
// re-scheduled, or a terminal outcome (normal return or panic).
type resumeOutcome struct {
	source     EventSource
	terminated bool
	panicVal   any
	panicStack []byte
}

// stackExecutor is the "run this closure on a fresh stack; let it yield a
// value back to its caller" primitive spec.md §4.1 assumes is provided
// externally. Go gives no public API to swap an OS thread onto an
// arbitrary pre-allocated stack, so this is realized the way
// tcard-coro's original New function did it: a dedicated goroutine, which
// already has its own independently-scheduled, growable stack, paired
// with two unbuffered channels used purely for handoff rendezvous.
//
// Exactly one of resume()'s two parties runs at a time: the executor
// blocks on resumeCh immediately after sending on outCh, and the resumer
// blocks receiving on outCh immediately after sending on resumeCh. This
// is what lets the rest of the runtime treat the goroutine as if it were
// a coroutine stack that only runs when explicitly resumed.
type stackExecutor struct {
	resumeCh chan struct{}
	outCh    chan resumeOutcome
}

// newStackExecutor starts the executor's goroutine. The goroutine blocks
// immediately on the first resume; f does not run until resume() is
// called once. yield is the function f must call to suspend; it is only
// ever safe to call from within f's own call stack.
func newStackExecutor(f func(yield func(EventSource))) *stackExecutor {
	e := &stackExecutor{
		resumeCh: make(chan struct{}),
		outCh:    make(chan resumeOutcome),
	}

	yield := func(es EventSource) {
		e.outCh <- resumeOutcome{source: es}
		<-e.resumeCh
	}

	go func() {
		<-e.resumeCh

		var final resumeOutcome
		func() {
			defer func() {
				if r := recover(); r != nil {
					final = resumeOutcome{
						terminated: true,
						panicVal:   r,
						panicStack: debug.Stack(),
					}
				}
			}()
			f(yield)
			final = resumeOutcome{terminated: true}
		}()

		e.outCh <- final
	}()

	return e
}

// resume hands control to the executor's goroutine and blocks until it
// yields or terminates. Calling resume after termination deadlocks; the
// scheduler never does this (handle.state tracks termination).
func (e *stackExecutor) resume() resumeOutcome {
	e.resumeCh <- struct{}{}
	return <-e.outCh
}

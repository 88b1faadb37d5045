package coro

import (
	"sync"

	"github.com/petermattis/goid"
)

// currentRegistry implements the single thread-local "current coroutine"
// pointer spec.md §9 calls for. Go has no public thread-local storage, but
// a coroutine's user closure always runs on one dedicated goroutine for
// its entire life (stackExecutor never migrates it), so keying a lookup by
// goroutine id is exactly equivalent to a thread-local: it is set once
// when the coroutine's goroutine starts and never needs updating again.
//
// goid.Get reads the runtime's internal g.goid field directly (no string
// parsing of runtime.Stack), keeping the lookup cheap enough to call on
// every yield point and cancel check.
var currentRegistry sync.Map // int64 goroutine id -> *Coroutine

func setCurrent(co *Coroutine) {
	currentRegistry.Store(goid.Get(), co)
}

func clearCurrent() {
	currentRegistry.Delete(goid.Get())
}

// current returns the Coroutine owning the calling goroutine, or nil if
// the calling goroutine is not a coroutine's executor goroutine.
func current() *Coroutine {
	v, ok := currentRegistry.Load(goid.Get())
	if !ok {
		return nil
	}
	return v.(*Coroutine)
}

// IsCoroutine reports whether the calling goroutine is running as a
// coroutine spawned by this package.
func IsCoroutine() bool {
	return current() != nil
}

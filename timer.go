package coro

import (
	"container/heap"
	"time"
)

// timerEntry is the "Timer entry" from spec.md §3: an absolute deadline,
// an opaque action, and a back-link (cancelled) used to null out the
// action on cancellation so a fire-after-cancel is a harmless no-op.
type timerEntry struct {
	deadline  time.Time
	action    func()
	cancelled bool
	index     int // heap.Interface bookkeeping
}

// timerHandle lets the registrant cancel a timer before it fires.
type timerHandle struct {
	entry *timerEntry
}

// cancel nulls out the timer's action. Safe to call even after the timer
// has already fired. Must only be called by the owning worker (spec.md
// §9 open question: completion-selector timer removal is not
// thread-safe in the original; this package enforces the stronger
// invariant that timers are touched only by their owning worker).
func (h timerHandle) cancel() {
	if h.entry != nil {
		h.entry.cancelled = true
	}
}

// timerHeap implements container/heap.Interface, keeping the
// least-deadline entry at the root. No third-party timer-wheel package
// appears as a dependency anywhere in the retrieval pack, so this uses
// the stdlib container/heap, documented here as the required
// justification for a standard-library implementation of this piece.
type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// timerWheel is the per-worker timer structure from spec.md §2/§4.3:
// insert, remove (via timerHandle.cancel), and "fire all expired, return
// next deadline". Accessed only by its owning worker goroutine; nothing
// else reaches into it directly (cross-worker wakeups go through the
// selectors' wakeup via Scheduler.wakeupAll, per spec.md §5).
type timerWheel struct {
	h timerHeap
}

// add schedules action to run after dur elapses.
func (w *timerWheel) add(dur time.Duration, action func()) timerHandle {
	e := &timerEntry{deadline: monotonicNow().Add(dur), action: action}
	heap.Push(&w.h, e)
	return timerHandle{entry: e}
}

// fireExpired runs the action of every timer whose deadline has passed,
// skipping any that were cancelled in the meantime, and returns the
// worker's next wait timeout: the duration until the next live timer, or
// -1 if there are none.
func (w *timerWheel) fireExpired() time.Duration {
	now := monotonicNow()
	for w.h.Len() > 0 {
		next := w.h[0]
		if next.cancelled {
			heap.Pop(&w.h)
			continue
		}
		if next.deadline.After(now) {
			return next.deadline.Sub(now)
		}
		heap.Pop(&w.h)
		next.action()
	}
	return -1
}

// monotonicNow is split out so it is easy to see this is the only place
// the timer wheel reads wall/monotonic time from.
func monotonicNow() time.Time { return time.Now() }

package coro

import (
	"errors"
	"testing"
	"time"
)

func TestAtomicSlotTakeIsIdempotent(t *testing.T) {
	var slot atomicSlot[int]
	if got := slot.take(); got != nil {
		t.Fatalf("expected empty slot to yield nil, got %v", *got)
	}

	v := 5
	slot.store(&v)
	first := slot.take()
	second := slot.take()
	if first == nil || *first != 5 {
		t.Fatalf("expected first take to return 5, got %v", first)
	}
	if second != nil {
		t.Fatalf("expected second take on an emptied slot to return nil, got %v", *second)
	}
}

func TestLocalQueueOwnerPopsLIFOStealersFIFO(t *testing.T) {
	q := &localQueue{}
	a, b, c := &Coroutine{id: 1}, &Coroutine{id: 2}, &Coroutine{id: 3}
	q.push(a)
	q.push(b)
	q.push(c)

	if got := q.pop(); got != c {
		t.Fatalf("expected owner pop to return the most recently pushed coroutine")
	}
	if got := q.steal(); got != a {
		t.Fatalf("expected steal to return the oldest remaining coroutine")
	}
	if got := q.len(); got != 1 {
		t.Fatalf("expected 1 coroutine left, got %d", got)
	}
}

func TestGlobalQueueFIFO(t *testing.T) {
	q := newGlobalQueue(4)
	a, b := &Coroutine{id: 1}, &Coroutine{id: 2}
	q.push(a)
	q.push(b)
	if got := q.tryPop(); got != a {
		t.Fatal("expected global queue to be FIFO")
	}
	if got := q.tryPop(); got != b {
		t.Fatal("expected global queue to be FIFO")
	}
	if got := q.tryPop(); got != nil {
		t.Fatal("expected empty queue to return nil")
	}
}

func TestParkSlotCoalescesUnparkBeforePark(t *testing.T) {
	var slot parkSlot
	co := &Coroutine{id: 1}

	if got := slot.unpark(); got != nil {
		t.Fatal("unpark on an empty slot should return nil and record a token")
	}
	if immediatelyReady := slot.park(co); !immediatelyReady {
		t.Fatal("park should consume the pending token and report immediately ready")
	}
	// The token is now consumed: parking again without a matching unpark
	// must actually suspend.
	if immediatelyReady := slot.park(co); immediatelyReady {
		t.Fatal("park should not find a token the second time")
	}
	if got := slot.take(); got != co {
		t.Fatal("take should return the coroutine parked by the second park call")
	}
}

func TestTimerWheelFiresInDeadlineOrder(t *testing.T) {
	w := &timerWheel{}
	var order []int
	w.add(30*time.Millisecond, func() { order = append(order, 3) })
	w.add(10*time.Millisecond, func() { order = append(order, 1) })
	h2 := w.add(20*time.Millisecond, func() { order = append(order, 2) })
	_ = h2

	time.Sleep(40 * time.Millisecond)
	w.fireExpired()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected timers to fire in deadline order, got %v", order)
	}
}

func TestTimerHandleCancel(t *testing.T) {
	w := &timerWheel{}
	fired := false
	h := w.add(5*time.Millisecond, func() { fired = true })
	h.cancel()

	time.Sleep(10 * time.Millisecond)
	w.fireExpired()

	if fired {
		t.Fatal("cancelled timer must not fire")
	}
}

func TestCancelControllerIdempotentAndDisableLatches(t *testing.T) {
	var c cancelController
	co := &Coroutine{}

	c.disableCancel()
	c.cancel(co, errors.New("boom"))
	if !c.isCancelled() {
		t.Fatal("cancel() must set the request bit even while disabled")
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatal("checkCancel must be inert while disabled")
			}
		}()
		c.checkCancel()
	}()

	c.enableCancel()

	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("checkCancel should panic once disable depth returns to zero")
			}
			if _, ok := r.(Cancelled); !ok {
				t.Fatalf("expected a Cancelled panic, got %v", r)
			}
		}()
		c.checkCancel()
	}()

	// A second cancel() call must be a no-op (invariant I5): the cause
	// set on the first call is the one that sticks.
	firstCause := *c.cause.Load()
	secondCause := errors.New("second")
	c.cancel(co, secondCause)
	if storedCause := *c.cause.Load(); storedCause != firstCause {
		t.Fatal("second cancel() call must not overwrite the recorded cause")
	}
}

func TestCancelControllerNestedDisable(t *testing.T) {
	var c cancelController
	c.disableCancel()
	c.disableCancel()
	c.enableCancel()
	if !c.isDisabled() {
		t.Fatal("nested disable/enable should still be disabled after only one enable")
	}
	c.enableCancel()
	if c.isDisabled() {
		t.Fatal("disable depth should be back to zero")
	}
}

func TestRequireCurrentPanicsOutsideCoroutine(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic calling a coroutine-only operation outside a coroutine")
		}
	}()
	requireCurrent("test op")
}

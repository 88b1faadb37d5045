package coro

import "sync"

// coWaitGroup is the "internal WaitGroup (count + parker) over the
// normal primitives" spec.md §4.2 says Scope is built from: a counter
// plus the same dual coroutine/OS-thread waiter bookkeeping
// JoinHandle.Join uses, generalized to wait for N completions instead of
// one coroutine's result.
type coWaitGroup struct {
	mu        sync.Mutex
	count     int
	coWaiters []*parkSlot
	chWaiters []chan struct{}
}

func (wg *coWaitGroup) add(delta int) {
	wg.mu.Lock()
	wg.count += delta
	wg.mu.Unlock()
}

func (wg *coWaitGroup) done() {
	wg.mu.Lock()
	wg.count--
	zero := wg.count == 0
	var coWaiters []*parkSlot
	var chWaiters []chan struct{}
	if zero {
		coWaiters, wg.coWaiters = wg.coWaiters, nil
		chWaiters, wg.chWaiters = wg.chWaiters, nil
	}
	wg.mu.Unlock()

	if !zero {
		return
	}
	for _, slot := range coWaiters {
		if co := slot.unpark(); co != nil {
			globalScheduler().scheduleDirect(co)
		}
	}
	for _, ch := range chWaiters {
		close(ch)
	}
}

// wait blocks the caller — coroutine or OS thread — until the count
// reaches zero.
func (wg *coWaitGroup) wait() {
	if caller := current(); caller != nil {
		wg.waitAsCoroutine(caller)
		return
	}
	wg.waitBlocking()
}

func (wg *coWaitGroup) waitAsCoroutine(caller *Coroutine) {
	caller.cancel.checkCancel()

	slot := &parkSlot{}
	wg.mu.Lock()
	if wg.count == 0 {
		wg.mu.Unlock()
		return
	}
	wg.coWaiters = append(wg.coWaiters, slot)
	wg.mu.Unlock()

	caller.cancel.setPark(slot)
	yieldWith(joinWaitEvent{slot: slot})
	caller.cancel.clearPark()
	caller.cancel.checkCancel()
}

func (wg *coWaitGroup) waitBlocking() {
	wg.mu.Lock()
	if wg.count == 0 {
		wg.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	wg.chWaiters = append(wg.chWaiters, ch)
	wg.mu.Unlock()
	<-ch
}

// Scope lets a coroutine spawn a group of borrowing coroutines whose
// lifetime is bounded by the scope: Scope returns only once every
// coroutine it produced has terminated, even if the scope function
// itself panics (spec.md §4.2, testable property P6).
type Scope struct {
	wg    coWaitGroup
	sched *Scheduler
}

// RunScope runs body with a Scope, waits for every coroutine spawned
// through it to finish, and returns. If body panics, RunScope still
// waits for all spawned coroutines before propagating the panic.
func RunScope(body func(s *Scope)) {
	RunScopeWith(globalScheduler(), body)
}

// RunScopeWith is RunScope with its coroutines spawned on sched (see
// Builder.OnScheduler).
func RunScopeWith(sched *Scheduler, body func(s *Scope)) {
	s := &Scope{sched: sched}
	defer s.wg.wait()
	body(s)
}

// ScopeSpawn spawns f on a new coroutine tracked by s: RunScope(With)
// does not return until f (and every coroutine it might itself spawn
// through s) has terminated. The JoinHandle returned behaves exactly
// like one from Spawn.
func ScopeSpawn[T any](s *Scope, f func() T) JoinHandle[T] {
	s.wg.add(1)
	h := SpawnWith(NewBuilder().OnScheduler(s.sched), func() T {
		defer s.wg.done()
		return f()
	})
	return h
}

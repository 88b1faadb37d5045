package coro

import "sync"

// parkSlot is the single-producer/single-consumer cell described in
// spec.md §3 ("Park slot"): it holds at most one parked coroutine, and
// coalesces an unpark that arrives before the matching park so the park
// call returns immediately instead of suspending (invariant I4).
//
// A mutex, not a lock-free CAS loop, guards the three logical states
// (empty / pending-token / parked) — park and unpark are already
// scheduling operations that touch queues and timers, so a short
// critical section here costs nothing extra and keeps the state machine
// easy to read.
type parkSlot struct {
	mu    sync.Mutex
	co    *Coroutine
	token bool
}

// park records co as parked here, unless an unpark already arrived first
// (pending token), in which case it consumes the token and reports the
// coroutine as immediately ready instead of storing it.
func (p *parkSlot) park(co *Coroutine) (immediatelyReady bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token {
		p.token = false
		return true
	}
	p.co = co
	return false
}

// unpark removes and returns the parked coroutine if one is present;
// otherwise it records a pending token for the next park call and
// returns nil. unpark never blocks.
func (p *parkSlot) unpark() *Coroutine {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.co != nil {
		co := p.co
		p.co = nil
		return co
	}
	p.token = true
	return nil
}

// take forcibly removes whatever coroutine is parked here, without
// touching the pending token. Used by cancel() to reclaim a parked
// coroutine and reschedule it directly.
func (p *parkSlot) take() *Coroutine {
	p.mu.Lock()
	defer p.mu.Unlock()
	co := p.co
	p.co = nil
	return co
}

package coro

import "context"

// Builder configures a coroutine before spawning it. The teacher library
// configured its New call through a variadic Options/SetOption pair
// (KillOnContextDone, WithGoFunc); a chained setter reads better for a
// builder that is constructed once and spawned once, so that idea
// survives here as fluent methods returning *Builder instead.
type Builder struct {
	name      string
	sched     *Scheduler
	killCtx   context.Context
	stackHint int
}

// NewBuilder returns a Builder with no name, running on the default
// process-wide scheduler.
func NewBuilder() *Builder {
	return &Builder{}
}

// Name sets the coroutine's name, visible via Coroutine.Name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// StackSize records a stack size in bytes for the coroutine. The value is
// not used; see Config.StackSize.
func (b *Builder) StackSize(n int) *Builder {
	b.stackHint = n
	return b
}

// OnScheduler spawns the coroutine on a specific Scheduler instead of the
// process-wide default one. Only its first placement uses s: a coroutine
// woken by Unpark, Cancel, a timer, or a finished Join or Scope wait is
// queued on the default scheduler and continues on one of its workers.
// When SpawnWith is called from inside a coroutine, the new coroutine goes
// onto the calling worker's local queue, whichever scheduler owns it.
func (b *Builder) OnScheduler(s *Scheduler) *Builder {
	b.sched = s
	return b
}

// WithContext ties the coroutine's lifetime to ctx: when ctx is done, the
// coroutine is cancelled exactly as if CoroutineRef.Cancel had been
// called, with Cancelled.Cause set to ctx.Err(). This generalizes the
// teacher library's KillOnContextDone option.
func (b *Builder) WithContext(ctx context.Context) *Builder {
	b.killCtx = ctx
	return b
}

// SpawnWith builds and schedules the coroutine described by b, running f
// on it. Go methods cannot introduce their own type parameters, so this
// stands in for the spec's "Builder{...}::spawn(f)" method call: the
// builder comes first, the generic result type is inferred from f. Spawn
// is the common-case shorthand that uses an unconfigured Builder.
func SpawnWith[T any](b *Builder, f func() T) JoinHandle[T] {
	sched := b.sched
	if sched == nil {
		sched = globalScheduler()
	}

	co := newCoroutine(b.name, -1, func() any {
		return f()
	})

	if b.killCtx != nil {
		ref := &CoroutineRef{co: co}
		go func() {
			select {
			case <-b.killCtx.Done():
				ref.co.cancel.cancel(ref.co, b.killCtx.Err())
			case <-coFinished(co):
			}
		}()
	}

	sched.scheduleNew(co)
	return JoinHandle[T]{co: co}
}

// coFinished returns a channel closed once co's join slot is filled, used
// internally to stop the WithContext watcher goroutine from outliving
// the coroutine it watches.
func coFinished(co *Coroutine) <-chan struct{} {
	ch, already := co.join.addChanWaiter()
	if already {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return ch
}

package coro

// Spawn runs f on a new coroutine scheduled on the process-wide default
// Scheduler (lazily created on first use) and returns a JoinHandle for
// it. Use SpawnWith with a Builder to set a name, pin a Scheduler, or tie
// the coroutine's lifetime to a context.
func Spawn[T any](f func() T) JoinHandle[T] {
	return SpawnWith(NewBuilder(), f)
}

package coro

import "sync/atomic"

// rwSlot is half of the "Event descriptor (readiness variant)" from
// spec.md §3: an atomic flag the selector raises when the kernel reports
// readiness, and the coroutine parked waiting for it. A readiness-backed
// file descriptor gets one of these for reads and one for writes (the
// spec describes a single flag+slot per descriptor; this package keeps
// independent read and write halves so a reader and a writer coroutine
// can both have an outstanding wait on the same connection at once,
// which any realistic TCP/Unix stream needs to support).
type rwSlot struct {
	ready atomic.Bool
	co    atomicSlot[Coroutine]
}

// fdDescriptor is the per-file-descriptor readiness record: the fd plus
// its read and write rwSlots. registerFD leaves worker at zero; the
// descriptor belongs to the selector instance it was registered with.
type fdDescriptor struct {
	fd       int
	worker   int
	read     rwSlot
	write    rwSlot
	errSlot  atomicSlot[error]
	closed   atomic.Bool
}

// ioSelector is the richer per-platform surface a caller registering its
// own file descriptor drives directly, in addition to the
// scheduler-facing selector interface. Only the unix (epoll/kqueue)
// backends implement it; the windows backend uses a completion-port
// protocol with a different descriptor shape (see selector_windows.go).
type ioSelector interface {
	selector
	registerFD(fd int) (*fdDescriptor, error)
	deregisterFD(desc *fdDescriptor) error
}

//go:build windows

package coro

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// eventData is the windows completion-variant analog of fdDescriptor: an
// OVERLAPPED structure embedded at offset zero so a *eventData can be
// passed directly to an overlapped-I/O Win32 call and recovered from the
// LPOVERLAPPED GetQueuedCompletionStatus hands back, exactly as
// original_source's iocp.rs embeds its EventData in OVERLAPPED.
type eventData struct {
	overlapped windows.Overlapped
	co         atomicSlot[Coroutine]
	err        atomicSlot[error]
	bytes      uint32
}

// ioCompletionCanceller cancels a single outstanding overlapped operation
// via CancelIoEx, the kernel-side cancel original_source's CancelIo impl
// issues for the completion variant (spec.md §4.6).
type ioCompletionCanceller struct {
	handle windows.Handle
	ev     *eventData
}

func (c ioCompletionCanceller) cancelIO() bool {
	err := windows.CancelIoEx(c.handle, &c.ev.overlapped)
	// ERROR_NOT_FOUND means the operation already completed and its
	// packet is already queued; either way the completion will still
	// arrive and drive resumption normally.
	return err == nil || err == windows.ERROR_NOT_FOUND
}

// iocpSelector is the windows selector backend: a single I/O completion
// port shared by every handle registered with it. Unlike the unix
// backends it does not implement ioSelector (registerFD/deregisterFD
// are readiness-shaped); see registerHandle below for the
// completion-shaped equivalent.
type iocpSelector struct {
	port windows.Handle
}

const iocpWakeupKey uintptr = ^uintptr(0)

func init() {
	newPlatformSelector = newIOCPSelector
}

func newIOCPSelector() (selector, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &iocpSelector{port: port}, nil
}

// registerHandle associates h with the completion port so overlapped
// operations issued against it deliver their completions here.
func (s *iocpSelector) registerHandle(h windows.Handle) error {
	_, err := windows.CreateIoCompletionPort(h, s.port, 0, 0)
	return err
}

// ntStatusCancelled is STATUS_CANCELLED, the NTSTATUS overlapped.Internal
// carries when a pending operation was cancelled via CancelIoEx.
// golang.org/x/sys/windows only exposes Win32 error codes, not NTSTATUS
// values, so this is defined locally exactly as original_source's iocp.rs
// pulls STATUS_CANCELLED in from the ntapi crate for the same check.
const ntStatusCancelled = 0xC0000120

// classifyCompletion maps a delivered completion packet's status to the
// error an ioCompletionLoop caller should see: nil on success, ErrTimedOut
// when the kernel reports the op as cancelled/aborted (the only way a
// CancelIoEx'd operation surfaces here), or the OS error otherwise.
// Grounded on original_source/src/io/sys/windows/iocp.rs's match over
// overlapped.Internal (ERROR_OPERATION_ABORTED | STATUS_CANCELLED -> timeout,
// NO_ERROR -> nil, anything else -> the OS error).
func classifyCompletion(ov *windows.Overlapped, err error) error {
	switch ov.Internal {
	case 0:
		return nil
	case uintptr(windows.ERROR_OPERATION_ABORTED), ntStatusCancelled:
		return ErrTimedOut
	default:
		if err != nil {
			return err
		}
		return windows.Errno(ov.Internal)
	}
}

func (s *iocpSelector) wait(timeout time.Duration, hasDeadline bool) []*Coroutine {
	ms := uint32(windows.INFINITE)
	if hasDeadline {
		ms = uint32(timeout / time.Millisecond)
	}

	var ready []*Coroutine
	for {
		var bytes uint32
		var key uintptr
		var ov *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(s.port, &bytes, &key, &ov, ms)
		if ov == nil {
			// timeout, or the call itself failed with nothing to report.
			return ready
		}
		if key == iocpWakeupKey {
			continue
		}

		ev := (*eventData)(unsafe.Pointer(ov))
		ev.bytes = bytes
		if mapped := classifyCompletion(ov, err); mapped != nil {
			ev.err.store(&mapped)
		}
		if co := ev.co.take(); co != nil {
			ready = append(ready, co)
		}
		// Drain any further already-queued packets without blocking
		// again this poll, same batching behavior the unix EpollWait
		// loop gives its caller.
		ms = 0
	}
}

func (s *iocpSelector) wakeup() {
	windows.PostQueuedCompletionStatus(s.port, 0, iocpWakeupKey, nil)
}

func (s *iocpSelector) close() error {
	return windows.CloseHandle(s.port)
}

// completionWaitEvent is the EventSource a windows overlapped operation
// yields after issuing the call and getting ERROR_IO_PENDING back: it
// stores the coroutine in ev, registers the kernel-side canceller, and
// waits for wait() above to deliver the completion packet.
type completionWaitEvent struct {
	ev      *eventData
	handle  windows.Handle
	timeout time.Duration
	hasTO   bool
}

func (e completionWaitEvent) Subscribe(co *Coroutine) {
	e.ev.co.store(co)
	co.cancel.setIO(ioCompletionCanceller{handle: e.handle, ev: e.ev})
	if co.cancel.isCancelled() {
		// Cancel() may have run between the store above and setIO,
		// finding neither side-slot populated and only setting the
		// request bit (cancel() is idempotent past that point and
		// won't retry the kernel-cancel/reschedule path). Pull the
		// coroutine back out directly instead of re-invoking cancel().
		if taken := e.ev.co.take(); taken != nil {
			globalScheduler().scheduleDirect(taken)
		}
	}
	if e.hasTO {
		co.runningOn.timers.add(e.timeout, func() {
			if taken := e.ev.co.take(); taken != nil {
				windows.CancelIoEx(e.handle, &e.ev.overlapped)
				timedOutErr := error(ErrTimedOut)
				e.ev.err.store(&timedOutErr)
				globalScheduler().scheduleDirect(taken)
			}
		})
	}
}

// ioCompletionLoop is the completion-variant counterpart to io_unix.go's
// ioRetryLoop: the operation driver every overlapped read/write/accept/
// connect goes through. It issues the syscall via attempt, and only
// yields completionWaitEvent when the kernel actually queued the
// operation (nil or ERROR_IO_PENDING); a failure returned before the
// operation was queued has no completion packet to wait for and is
// returned immediately. Grounded on original_source's
// io/sys/windows/iocp.rs select() loop and the unix retry loop's shape.
func ioCompletionLoop(ev *eventData, handle windows.Handle, deadline time.Time, hasDeadline bool, attempt func(*windows.Overlapped) error) (uint32, error) {
	co := requireCurrent("I/O")
	co.cancel.checkCancel()

	ev.err.clear()
	ev.bytes = 0

	if err := attempt(&ev.overlapped); err != nil && err != windows.ERROR_IO_PENDING {
		return 0, err
	}

	yieldWith(completionWaitEvent{ev: ev, handle: handle, timeout: time.Until(deadline), hasTO: hasDeadline})
	co.cancel.clearIO()
	co.cancel.checkCancel()

	if stored := ev.err.take(); stored != nil {
		return ev.bytes, *stored
	}
	return ev.bytes, nil
}

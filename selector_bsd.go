//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package coro

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueSelector is the BSD/Darwin ioSelector backend: the same
// registerFD/deregisterFD/wait/wakeup contract as selector_linux.go,
// grounded on zephyrtronium-iolang's system_unix.go kqueue variant.
// Wakeup uses a self-pipe since plain kqueue (unlike epoll's eventfd)
// has no portable fd to write an arbitrary wakeup into across all of
// these targets.
type kqueueSelector struct {
	kq int

	wakeR int
	wakeW int

	mu    sync.Mutex
	descs map[int]*fdDescriptor
}

func init() {
	newPlatformSelector = newKqueueSelector
}

func newKqueueSelector() (selector, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		unix.Close(kq)
		return nil, err
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)

	s := &kqueueSelector{
		kq:    kq,
		wakeR: fds[0],
		wakeW: fds[1],
		descs: make(map[int]*fdDescriptor),
	}

	ev := unix.Kevent_t{}
	unix.SetKevent(&ev, s.wakeR, unix.EVFILT_READ, unix.EV_ADD)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *kqueueSelector) registerFD(fd int) (*fdDescriptor, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	desc := &fdDescriptor{fd: fd}

	var changes [2]unix.Kevent_t
	unix.SetKevent(&changes[0], fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR)
	unix.SetKevent(&changes[1], fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(s.kq, changes[:], nil, nil); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.descs[fd] = desc
	s.mu.Unlock()
	return desc, nil
}

func (s *kqueueSelector) deregisterFD(desc *fdDescriptor) error {
	desc.closed.Store(true)
	s.mu.Lock()
	delete(s.descs, desc.fd)
	s.mu.Unlock()

	var changes [2]unix.Kevent_t
	unix.SetKevent(&changes[0], desc.fd, unix.EVFILT_READ, unix.EV_DELETE)
	unix.SetKevent(&changes[1], desc.fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	_, err := unix.Kevent(s.kq, changes[:], nil, nil)
	return err
}

func (s *kqueueSelector) wait(timeout time.Duration, hasDeadline bool) []*Coroutine {
	var ts *unix.Timespec
	if hasDeadline {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	var events [128]unix.Kevent_t
	n, err := unix.Kevent(s.kq, nil, events[:], ts)
	for err == unix.EINTR {
		n, err = unix.Kevent(s.kq, nil, events[:], ts)
	}
	if err != nil {
		return nil
	}

	var ready []*Coroutine
	for i := 0; i < n; i++ {
		ev := events[i]
		fd := int(ev.Ident)

		if fd == s.wakeR {
			var buf [64]byte
			unix.Read(s.wakeR, buf[:])
			continue
		}

		s.mu.Lock()
		desc, ok := s.descs[fd]
		s.mu.Unlock()
		if !ok {
			continue
		}

		switch ev.Filter {
		case unix.EVFILT_READ:
			desc.read.ready.Store(true)
			if co := desc.read.co.take(); co != nil {
				ready = append(ready, co)
			}
		case unix.EVFILT_WRITE:
			desc.write.ready.Store(true)
			if co := desc.write.co.take(); co != nil {
				ready = append(ready, co)
			}
		}
	}
	return ready
}

func (s *kqueueSelector) wakeup() {
	var one [1]byte
	unix.Write(s.wakeW, one[:])
}

func (s *kqueueSelector) close() error {
	unix.Close(s.wakeR)
	unix.Close(s.wakeW)
	return unix.Close(s.kq)
}

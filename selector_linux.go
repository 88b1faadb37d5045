//go:build linux

package coro

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollSelector is the linux ioSelector backend, grounded on
// zephyrtronium-iolang's system_unix.go epoll wiring and
// original_source's io-readiness (not IOCP) path. One instance is owned
// by each compute worker (see Config.IOWorkers).
type epollSelector struct {
	epfd    int
	eventfd int

	mu    sync.Mutex
	descs map[int]*fdDescriptor
}

func init() {
	newPlatformSelector = newEpollSelector
}

func newEpollSelector() (selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}

	s := &epollSelector{
		epfd:    epfd,
		eventfd: efd,
		descs:   make(map[int]*fdDescriptor),
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(efd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, efd, &ev); err != nil {
		unix.Close(epfd)
		unix.Close(efd)
		return nil, err
	}
	return s, nil
}

// registerFD puts fd in non-blocking mode and registers it for
// edge-triggered read and write readiness. Edge-triggered mode matches
// the retry-loop protocol in io_unix.go: a single EPOLLIN/EPOLLOUT
// wakes the coroutine once, which then drains until EAGAIN rather than
// relying on repeated level-triggered notifications.
func (s *epollSelector) registerFD(fd int) (*fdDescriptor, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	desc := &fdDescriptor{fd: fd}

	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.descs[fd] = desc
	s.mu.Unlock()
	return desc, nil
}

func (s *epollSelector) deregisterFD(desc *fdDescriptor) error {
	desc.closed.Store(true)
	s.mu.Lock()
	delete(s.descs, desc.fd)
	s.mu.Unlock()
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, desc.fd, nil)
}

func (s *epollSelector) wait(timeout time.Duration, hasDeadline bool) []*Coroutine {
	ms := -1
	if hasDeadline {
		ms = int(timeout / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
	}

	var events [128]unix.EpollEvent
	n, err := unix.EpollWait(s.epfd, events[:], ms)
	for err == unix.EINTR {
		n, err = unix.EpollWait(s.epfd, events[:], ms)
	}
	if err != nil {
		return nil
	}

	var ready []*Coroutine
	for i := 0; i < n; i++ {
		ev := events[i]
		if int(ev.Fd) == s.eventfd {
			var buf [8]byte
			unix.Read(s.eventfd, buf[:])
			continue
		}

		s.mu.Lock()
		desc, ok := s.descs[int(ev.Fd)]
		s.mu.Unlock()
		if !ok {
			continue
		}

		if ev.Events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			desc.read.ready.Store(true)
			if co := desc.read.co.take(); co != nil {
				ready = append(ready, co)
			}
		}
		if ev.Events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			desc.write.ready.Store(true)
			if co := desc.write.co.take(); co != nil {
				ready = append(ready, co)
			}
		}
	}
	return ready
}

func (s *epollSelector) wakeup() {
	var one [8]byte
	one[7] = 1
	unix.Write(s.eventfd, one[:])
}

func (s *epollSelector) close() error {
	unix.Close(s.eventfd)
	return unix.Close(s.epfd)
}

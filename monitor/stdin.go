package monitor

import (
	"golang.org/x/sys/unix"
)

// stdinPoller watches one file descriptor for readability on its own
// goroutine. After signalling ready it parks until the next Poll resumes
// it, so unconsumed input never busy-loops.
type stdinPoller struct {
	fd      int32
	ready   chan struct{}
	resumeC chan struct{}
	quit    chan struct{}
}

func newStdinPoller(fd int32) *stdinPoller {
	p := &stdinPoller{
		fd:      fd,
		ready:   make(chan struct{}),
		resumeC: make(chan struct{}),
		quit:    make(chan struct{}),
	}
	go p.run()
	return p
}

// resume unparks the poller. Safe to call when the poller is already
// polling.
func (p *stdinPoller) resume() {
	select {
	case p.resumeC <- struct{}{}:
	default:
	}
}

func (p *stdinPoller) stop() {
	close(p.quit)
}

func (p *stdinPoller) run() {
	fds := []unix.PollFd{{Fd: p.fd, Events: unix.POLLIN}}
	for {
		fds[0].Revents = 0
		n, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			// POLLHUP/POLLERR: the descriptor is gone for good.
			return
		}

		select {
		case p.ready <- struct{}{}:
		case <-p.quit:
			return
		}
		select {
		case <-p.resumeC:
		case <-p.quit:
			return
		}
	}
}

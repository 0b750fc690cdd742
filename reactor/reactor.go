// Package reactor is the poll-style readiness multiplexer: actors watch_fd()
// and get a MSG_FD_EVENT when the runtime's step loop finds the descriptor
// ready. It is built on golang.org/x/sys's raw unix.Poll rather than Go's
// blocking net/netpoller, since the kernel's step loop needs a single
// bounded-timeout poll call per iteration rather than a goroutine per fd.
package reactor

import (
	"github.com/foundation42/microkernel/message"
	"golang.org/x/sys/unix"
)

// Events mirrors the readiness bits a watcher can ask for.
type Events uint32

const (
	Readable Events = 1 << iota
	Writable
)

type watch struct {
	fd     int
	events Events
	owner  message.ActorID
}

// Reactor tracks watched fds and turns a poll() call into the set of
// MSG_FD_EVENT deliveries due this step.
type Reactor struct {
	watches map[int]*watch
}

// New returns an empty Reactor.
func New() *Reactor {
	return &Reactor{watches: make(map[int]*watch)}
}

// Watch registers fd for readiness notification. Re-watching an fd replaces
// its owner/event mask.
func (r *Reactor) Watch(fd int, events Events, owner message.ActorID) {
	r.watches[fd] = &watch{fd: fd, events: events, owner: owner}
}

// Unwatch removes fd from the watch set; called on fd close or when the
// watching actor is torn down.
func (r *Reactor) Unwatch(fd int) {
	delete(r.watches, fd)
}

// UnwatchOwner removes every fd watched by owner, for when a watcher actor
// is dropped without explicitly unwatching each fd first.
func (r *Reactor) UnwatchOwner(owner message.ActorID) {
	for fd, w := range r.watches {
		if w.owner == owner {
			delete(r.watches, fd)
		}
	}
}

// Ready is one fd's readiness result this poll.
type Ready struct {
	Owner  message.ActorID
	FD     int
	Events Events
}

// Poll blocks up to timeoutMs (a non-negative timeout, or -1 to block
// indefinitely — the runtime never does that; it passes the next timer delta,
// or a fixed default when no timer is live) and returns every watched fd
// found ready.
func (r *Reactor) Poll(timeoutMs int) ([]Ready, error) {
	if len(r.watches) == 0 {
		if timeoutMs > 0 {
			// Nothing to watch: don't block the step loop on an empty
			// poll set, let the caller's timer/default cadence govern.
			return nil, nil
		}
		return nil, nil
	}

	fds := make([]unix.PollFd, 0, len(r.watches))
	order := make([]*watch, 0, len(r.watches))
	for _, w := range r.watches {
		var mask int16
		if w.events&Readable != 0 {
			mask |= unix.POLLIN
		}
		if w.events&Writable != 0 {
			mask |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(w.fd), Events: mask})
		order = append(order, w)
	}

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	var out []Ready
	for i, pf := range fds {
		if pf.Revents == 0 {
			continue
		}
		var ev Events
		if pf.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ev |= Readable
		}
		if pf.Revents&unix.POLLOUT != 0 {
			ev |= Writable
		}
		if ev != 0 {
			out = append(out, Ready{Owner: order[i].owner, FD: order[i].fd, Events: ev})
		}
	}
	return out, nil
}

// Len reports how many fds are currently watched.
func (r *Reactor) Len() int { return len(r.watches) }

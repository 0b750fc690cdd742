package transport

import (
	"sync/atomic"

	"github.com/foundation42/microkernel/internal/conc"
)

// acceptBox hands the single connection a listener transport ever adopts
// from its blocking Accept loop (an internal/conc.Actor running off the
// step loop) to tryAccept, which drains it without blocking. It is backed
// by a conc.Mailbox rather than a raw channel so the accept loop's queuing
// goes through the same bridge primitive every other blocking-to-step-loop
// handoff in this package uses.
type acceptBox[T any] struct {
	mailbox conc.Mailbox[T]
	claimed atomic.Bool
}

func newAcceptBox[T any]() *acceptBox[T] {
	b := &acceptBox[T]{mailbox: conc.NewMailbox[T](conc.OptCapacity(1))}
	b.mailbox.Start()
	return b
}

// Offer hands v to the box if no connection has been accepted yet. It
// reports false when a connection was already delivered, telling the
// caller to reject v (e.g. close the socket) instead of queuing it.
func (b *acceptBox[T]) Offer(v T) bool {
	if !b.claimed.CompareAndSwap(false, true) {
		return false
	}
	b.mailbox.SendC() <- v
	return true
}

// Take pops the accepted value without blocking, if one has arrived.
func (b *acceptBox[T]) Take() (T, bool) {
	select {
	case v := <-b.mailbox.ReceiveC():
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Stop tears down the box's mailbox goroutine.
func (b *acceptBox[T]) Stop() {
	b.mailbox.Stop()
}

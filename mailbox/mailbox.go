// Package mailbox implements the bounded single-producer/single-consumer
// ring buffer: enqueue never blocks (it fails when
// full), dequeue never blocks (it returns false when empty), and capacity is
// rounded up to a power of two with a floor of two.
package mailbox

import "github.com/foundation42/microkernel/message"

// Mailbox is the bounded FIFO of messages destined for a single actor. It
// holds no locks: the runtime's single-threaded step loop is the only thing
// that ever touches a given Mailbox, so the producer/consumer split in the
// name is about roles, not concurrent goroutines.
type Mailbox struct {
	buf        []message.Message
	mask       uint64
	head, tail uint64 // tail - head == count; both monotonically increasing
}

// New returns a Mailbox with capacity rounded up to a power of two, minimum 2.
func New(capacity int) *Mailbox {
	cap := nextPowerOfTwo(capacity)
	return &Mailbox{
		buf:  make([]message.Message, cap),
		mask: uint64(cap) - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n < 2 {
		return 2
	}
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}

// Enqueue appends msg to the tail. It returns false without mutating the
// mailbox when the mailbox is already full.
func (m *Mailbox) Enqueue(msg message.Message) bool {
	if m.Count() == uint64(len(m.buf)) {
		return false
	}
	m.buf[m.tail&m.mask] = msg
	m.tail++
	return true
}

// Dequeue removes and returns the oldest message. ok is false when the
// mailbox is empty, in which case the returned Message is the zero value.
func (m *Mailbox) Dequeue() (msg message.Message, ok bool) {
	if m.head == m.tail {
		return message.Message{}, false
	}
	msg = m.buf[m.head&m.mask]
	m.buf[m.head&m.mask] = message.Message{} // drop the reference promptly
	m.head++
	return msg, true
}

// IsEmpty reports whether the mailbox currently holds no messages.
func (m *Mailbox) IsEmpty() bool { return m.head == m.tail }

// Count returns the number of messages currently queued.
func (m *Mailbox) Count() uint64 { return m.tail - m.head }

// Capacity returns the power-of-two capacity the mailbox was rounded up to.
func (m *Mailbox) Capacity() int { return len(m.buf) }

// Drain removes and discards every queued message, e.g. when the owning
// actor is torn down with messages still pending.
func (m *Mailbox) Drain() {
	for i := range m.buf {
		m.buf[i] = message.Message{}
	}
	m.head, m.tail = 0, 0
}

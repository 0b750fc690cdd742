// Package scheduler is the intrusive, single-consumer FIFO ready queue
// a singly linked list threaded through each
// actor.Actor's own Next field, no secondary index, no lock.
package scheduler

import "github.com/foundation42/microkernel/actor"

// Scheduler holds the ready queue. Strict FIFO, equal priority, no
// preemption: the cooperative, run-to-completion-per-message policy this
// kernel requires.
type Scheduler struct {
	head, tail *actor.Actor
	count      int
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Enqueue appends a to the ready queue unless it is already ready — the
// duplicate guard: an actor must never appear twice in the ready queue.
// Status is set to
// StatusReady as a side effect.
func (s *Scheduler) Enqueue(a *actor.Actor) {
	if a.Status == actor.StatusReady {
		return
	}
	a.Status = actor.StatusReady
	a.Next = nil
	if s.tail == nil {
		s.head = a
		s.tail = a
	} else {
		s.tail.Next = a
		s.tail = a
	}
	s.count++
}

// Dequeue removes and returns the head of the ready queue, or nil if empty.
func (s *Scheduler) Dequeue() *actor.Actor {
	if s.head == nil {
		return nil
	}
	a := s.head
	s.head = a.Next
	if s.head == nil {
		s.tail = nil
	}
	a.Next = nil
	s.count--
	return a
}

// Len returns the number of actors currently ready to run.
func (s *Scheduler) Len() int { return s.count }

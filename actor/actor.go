// Package actor defines the kernel's own Actor: identity, lifecycle status,
// mailbox, behavior callback, and owned opaque state. This is deliberately
// not the concurrent internal/conc.Actor — a kernel Actor never runs on its
// own goroutine; the runtime's single-threaded step loop is what invokes its
// Behavior, one message at a time.
package actor

import (
	"github.com/foundation42/microkernel/mailbox"
	"github.com/foundation42/microkernel/message"
)

// Status is the actor's lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusReady
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ExitReason records why an actor terminated.
type ExitReason int

const (
	ExitNormal ExitReason = iota
	ExitKilled
)

func (r ExitReason) String() string {
	if r == ExitKilled {
		return "killed"
	}
	return "normal"
}

// Runtime is the minimal surface a Behavior needs from its owning runtime:
// sending and learning its own id, without importing the runtime package
// (which imports actor), avoiding a cycle. Spawning, timers and fd watches
// are methods of *runtime.Runtime and are not part of this interface.
type Runtime interface {
	Send(dest message.ActorID, typ message.Type, payload []byte) bool
	Self() message.ActorID
}

// Behavior processes one message against an actor's owned state and reports
// whether the actor should keep running. Returning false (or an explicit
// stop message having arrived) tears the actor down after this call.
type Behavior func(rt Runtime, self message.ActorID, msg message.Message, state any) (cont bool)

// ReleaseFunc releases an actor's owned state. It runs exactly once per
// actor, regardless of how the actor terminated.
type ReleaseFunc func(state any)

// Actor is exclusively owned by the runtime; nothing outside the step loop
// mutates it. Next is the intrusive link the scheduler uses — no secondary
// index exists.
type Actor struct {
	ID       message.ActorID
	Node     uint32
	Status   Status
	Mailbox  *mailbox.Mailbox
	Behavior Behavior
	State    any
	Release  ReleaseFunc
	Parent   message.ActorID // message.Invalid means unlinked
	Exit     ExitReason

	released bool

	// Next is the scheduler's intrusive ready-queue link. Only
	// scheduler.Scheduler reads or writes it.
	Next *Actor
}

// New constructs an Actor. mailboxCap is rounded up to a power of two,
// minimum two, by mailbox.New.
func New(id message.ActorID, behavior Behavior, state any, release ReleaseFunc, mailboxCap int) *Actor {
	return &Actor{
		ID:       id,
		Node:     id.Node,
		Status:   StatusIdle,
		Mailbox:  mailbox.New(mailboxCap),
		Behavior: behavior,
		State:    state,
		Release:  release,
		Parent:   message.Invalid,
		Exit:     ExitNormal,
	}
}

// ReleaseState runs Release exactly once, tolerating an actor with no
// release hook or no state.
func (a *Actor) ReleaseState() {
	if a.released {
		return
	}
	a.released = true
	if a.Release != nil {
		a.Release(a.State)
	}
}

// Package timer implements the monotonic-time-ordered timer wheel: one-shot
// and periodic timers delivered as MSG_TIMER messages to their owning
// actor, with lazy cancellation and no drift accumulation for periodic
// timers.
package timer

import (
	"sort"

	"github.com/foundation42/microkernel/message"
)

// ID identifies a timer. 0 is reserved invalid; ids are never reused while a
// timer is live.
type ID uint64

const Invalid ID = 0

type entry struct {
	id       ID
	owner    message.ActorID
	fireAt   int64 // monotonic microseconds
	period   int64 // 0 for one-shot
	canceled bool
}

// Wheel holds every live timer, ordered by fire time. A slice kept sorted by
// binary-search insertion is sufficient at the scale this kernel targets (tens
// to low hundreds of live timers on an embedded node); it trades O(log n)
// insertion for a trivially correct "earliest first" ordering guarantee.
type Wheel struct {
	entries []*entry
	byID    map[ID]*entry
	nextID  ID
}

// New returns an empty Wheel.
func New() *Wheel {
	return &Wheel{byID: make(map[ID]*entry), nextID: 1}
}

// Set schedules a new timer for owner, firing delayUs microseconds after
// nowUs. If periodUs is non-zero the timer reschedules itself relative to
// its previous fire time on each fire, so jitter never accumulates.
func (w *Wheel) Set(owner message.ActorID, nowUs, delayUs, periodUs int64) ID {
	id := w.nextID
	w.nextID++

	e := &entry{id: id, owner: owner, fireAt: nowUs + delayUs, period: periodUs}
	w.insert(e)
	return id
}

func (w *Wheel) insert(e *entry) {
	w.byID[e.id] = e
	// Insertion point keeps entries sorted ascending by fireAt; ties break
	// by insertion order (stable): same-delay timers fire in the order they
	// were scheduled.
	idx := sort.Search(len(w.entries), func(i int) bool {
		return w.entries[i].fireAt > e.fireAt
	})
	w.entries = append(w.entries, nil)
	copy(w.entries[idx+1:], w.entries[idx:])
	w.entries[idx] = e
}

// Cancel marks a timer canceled. Cancellation is lazy: a timer already due
// is silently dropped at fire time rather than removed immediately.
func (w *Wheel) Cancel(id ID) {
	if e, ok := w.byID[id]; ok {
		e.canceled = true
		delete(w.byID, id)
	}
}

// NextFireAt returns the fire time of the earliest live (non-canceled)
// timer, and false if none are scheduled. Used by the runtime to compute the
// poll timeout each step.
func (w *Wheel) NextFireAt() (int64, bool) {
	for _, e := range w.entries {
		if !e.canceled {
			return e.fireAt, true
		}
	}
	return 0, false
}

// Fired is one expired timer's delivery: owner actor and the MSG_TIMER
// payload (the timer id, big-endian u64).
type Fired struct {
	Owner message.ActorID
	ID    ID
}

// Advance pops every timer whose fire time is <= nowUs, rescheduling
// periodic ones relative to their previous fire time, and returns the set to
// deliver as MSG_TIMER messages. Canceled timers are dropped silently.
func (w *Wheel) Advance(nowUs int64) []Fired {
	var fired []Fired

	i := 0
	for i < len(w.entries) && w.entries[i].fireAt <= nowUs {
		e := w.entries[i]
		i++

		if e.canceled {
			continue
		}

		fired = append(fired, Fired{Owner: e.owner, ID: e.id})

		if e.period > 0 {
			e.fireAt += e.period
		} else {
			delete(w.byID, e.id)
		}
	}

	remaining := w.entries[i:]
	w.entries = append([]*entry(nil), remaining...)

	// Periodic timers that fired need to be re-inserted at their new
	// position; they were removed from the slice above but remain in byID.
	for _, f := range fired {
		if e, ok := w.byID[f.ID]; ok && e.period > 0 {
			w.insert(e)
		}
	}

	return fired
}

// Len reports the number of live (non-canceled) timers.
func (w *Wheel) Len() int { return len(w.byID) }

package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	kactor "github.com/foundation42/microkernel/actor"
	"github.com/foundation42/microkernel/message"
	"github.com/foundation42/microkernel/scheduler"
)

func newTestActor(seq uint32) *kactor.Actor {
	return kactor.New(message.ActorID{Node: 1, Seq: seq}, nil, nil, nil, 4)
}

func TestFIFOOrder(t *testing.T) {
	s := scheduler.New()
	a1, a2, a3 := newTestActor(1), newTestActor(2), newTestActor(3)
	s.Enqueue(a1)
	s.Enqueue(a2)
	s.Enqueue(a3)

	require.Equal(t, a1, s.Dequeue())
	require.Equal(t, a2, s.Dequeue())
	require.Equal(t, a3, s.Dequeue())
	require.Nil(t, s.Dequeue())
}

func TestEnqueueWhileReadyIsNoOp(t *testing.T) {
	s := scheduler.New()
	a := newTestActor(1)
	s.Enqueue(a)
	s.Enqueue(a) // duplicate guard: must not append twice
	require.Equal(t, 1, s.Len())
	require.Equal(t, a, s.Dequeue())
	require.Equal(t, 0, s.Len())
}

// TestDuplicateGuardProperty: no sequence of
// operations leaves an actor appearing in the ready queue more than once.
func TestDuplicateGuardProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := scheduler.New()
		actors := make([]*kactor.Actor, rapid.IntRange(1, 8).Draw(rt, "nactors"))
		for i := range actors {
			actors[i] = newTestActor(uint32(i + 1))
		}

		ops := rapid.IntRange(0, 64).Draw(rt, "nops")
		for i := 0; i < ops; i++ {
			idx := rapid.IntRange(0, len(actors)-1).Draw(rt, "idx")
			if rapid.Bool().Draw(rt, "enqueue") {
				s.Enqueue(actors[idx])
			} else {
				if a := s.Dequeue(); a != nil {
					a.Status = kactorIdle
				}
			}

			seen := map[*kactor.Actor]int{}
			for n := s.Dequeue(); n != nil; n = s.Dequeue() {
				seen[n]++
			}
			// Re-enqueue everything we just drained to restore state for
			// the next operation, now that we've checked for duplicates.
			for a, count := range seen {
				require.LessOrEqual(rt, count, 1, "actor appeared more than once in ready queue")
				a.Status = kactorIdle
				_ = a
			}
			for a := range seen {
				s.Enqueue(a)
			}
		}
	})
}

const kactorIdle = kactor.StatusIdle

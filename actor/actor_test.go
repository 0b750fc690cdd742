package actor_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/foundation42/microkernel/actor"
	"github.com/foundation42/microkernel/message"
)

func TestReleaseRunsExactlyOnce(t *testing.T) {
	calls := 0
	release := func(state any) {
		calls++
		require.Equal(t, "payload", state)
	}
	a := actor.New(message.ActorID{Node: 1, Seq: 1}, nil, "payload", release, 2)

	a.ReleaseState()
	a.ReleaseState()
	a.ReleaseState()

	require.Equal(t, 1, calls)
}

func TestReleaseToleratesNilHook(t *testing.T) {
	a := actor.New(message.ActorID{Node: 1, Seq: 1}, nil, nil, nil, 2)
	require.NotPanics(t, func() {
		a.ReleaseState()
		a.ReleaseState()
	})
}

// TestReleaseExactlyOnceProperty is invariant 2: regardless of how many
// times ReleaseState is invoked, the release hook itself fires exactly once.
func TestReleaseExactlyOnceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		calls := 0
		a := actor.New(message.ActorID{Node: 1, Seq: 1}, nil, nil, func(any) { calls++ }, 2)

		n := rapid.IntRange(1, 10).Draw(rt, "calls")
		for i := 0; i < n; i++ {
			a.ReleaseState()
		}
		require.Equal(rt, 1, calls)
	})
}

func TestNewMailboxCapacityRoundsUp(t *testing.T) {
	a := actor.New(message.ActorID{Node: 1, Seq: 1}, nil, nil, nil, 3)
	require.Equal(t, 4, a.Mailbox.Capacity())
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "idle", actor.StatusIdle.String())
	require.Equal(t, "ready", actor.StatusReady.String())
	require.Equal(t, "running", actor.StatusRunning.String())
	require.Equal(t, "stopped", actor.StatusStopped.String())
}

package runtime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundation42/microkernel/actor"
	"github.com/foundation42/microkernel/message"
	"github.com/foundation42/microkernel/runtime"
)

type counterState struct {
	n    int
	peer message.ActorID
}

func pingPong(rounds int) actor.Behavior {
	return func(rt actor.Runtime, self message.ActorID, msg message.Message, state any) bool {
		s := state.(*counterState)
		s.n++
		rt.Send(s.peer, 1, nil)
		return s.n < rounds
	}
}

// TestPingPongToCompletion exercises the single-node ping-pong scenario:
// two actors alternate sends until a round budget is exhausted, then both
// terminate.
func TestPingPongToCompletion(t *testing.T) {
	rt := runtime.New(1, "test", 16)

	aState := &counterState{}
	bState := &counterState{}
	behavior := pingPong(20)

	aID, err := rt.Spawn(behavior, aState, nil, 8)
	require.NoError(t, err)
	bID, err := rt.Spawn(behavior, bState, nil, 8)
	require.NoError(t, err)
	aState.peer, bState.peer = bID, aID

	require.True(t, rt.Send(aID, 1, nil))

	for rt.LiveActorCount() > 0 {
		require.NoError(t, rt.Step())
	}

	require.Equal(t, 0, rt.LiveActorCount())
	require.Equal(t, 20, aState.n)
	require.Equal(t, 20, bState.n)
}

// TestTimerDeliversToOwner: an actor that sets a timer for itself receives
// MSG_TIMER once it fires.
func TestTimerDeliversToOwner(t *testing.T) {
	rt := runtime.New(1, "test", 16)
	fired := false

	behavior := func(ar actor.Runtime, self message.ActorID, msg message.Message, state any) bool {
		switch msg.Type {
		case 100: // kickoff
			ar.(*runtime.Runtime).SetTimer(time.Millisecond, false)
			return true
		case message.Timer:
			_, ok := runtime.DecodeTimerID(msg.Payload)
			require.True(t, ok)
			fired = true
			return false
		}
		return true
	}

	id, err := rt.Spawn(behavior, nil, nil, 4)
	require.NoError(t, err)
	require.True(t, rt.Send(id, 100, nil))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !fired {
		require.NoError(t, rt.Step())
	}
	require.True(t, fired)
}

// TestSendToUnknownActorFails covers the ErrNotFound-equivalent path: Send
// returns false when the destination actor does not exist locally and no
// transport claims its node.
func TestSendToUnknownActorFails(t *testing.T) {
	rt := runtime.New(1, "test", 16)
	require.False(t, rt.Send(message.ActorID{Node: 1, Seq: 999}, 1, nil))
}

// TestSendFillsMailboxThenFails is scenario S6 exercised through Send/Step
// rather than the mailbox package directly: a slow consumer's mailbox fills
// and further sends are rejected until it drains.
func TestSendFillsMailboxThenFails(t *testing.T) {
	rt := runtime.New(1, "test", 16)

	gate := make(chan struct{})
	behavior := func(rt actor.Runtime, self message.ActorID, msg message.Message, state any) bool {
		<-gate
		return true
	}

	id, err := rt.Spawn(behavior, nil, nil, 2)
	require.NoError(t, err)

	require.True(t, rt.Send(id, 1, nil))
	require.True(t, rt.Send(id, 1, nil))
	require.False(t, rt.Send(id, 1, nil), "mailbox capacity 2 must reject a third pending send")

	close(gate)
	for rt.ReadyCount() > 0 {
		require.NoError(t, rt.Step())
	}
}

// TestSpawnRespectsActorTableLimit covers ErrTableFull.
func TestSpawnRespectsActorTableLimit(t *testing.T) {
	rt := runtime.New(1, "test", 1)
	_, err := rt.Spawn(func(actor.Runtime, message.ActorID, message.Message, any) bool { return true }, nil, nil, 4)
	require.NoError(t, err)

	_, err = rt.Spawn(func(actor.Runtime, message.ActorID, message.Message, any) bool { return true }, nil, nil, 4)
	require.ErrorIs(t, err, runtime.ErrTableFull)
}

// TestChildExitNotifiesParent verifies MSG_CHILD_EXIT delivery when a child
// spawned from inside a parent's own dispatch terminates.
func TestChildExitNotifiesParent(t *testing.T) {
	rt := runtime.New(1, "test", 16)

	var spawnedChild message.ActorID
	notified := false

	childBehavior := func(rt actor.Runtime, self message.ActorID, msg message.Message, state any) bool {
		return false // terminate on first message
	}

	parentBehavior := func(rt actor.Runtime, self message.ActorID, msg message.Message, state any) bool {
		switch msg.Type {
		case 100: // kickoff: spawn the child while this actor is "current"
			childID, err := rt.(*runtime.Runtime).Spawn(childBehavior, nil, nil, 4)
			require.NoError(t, err)
			spawnedChild = childID
			rt.Send(childID, 1, nil)
			return true
		case message.ChildExit:
			id, _, ok := runtime.DecodeChildExit(msg.Payload)
			require.True(t, ok)
			require.Equal(t, spawnedChild, id)
			notified = true
			return false
		}
		return true
	}

	parentID, err := rt.Spawn(parentBehavior, nil, nil, 4)
	require.NoError(t, err)
	require.True(t, rt.Send(parentID, 100, nil))

	for i := 0; i < 10 && rt.LiveActorCount() > 0; i++ {
		require.NoError(t, rt.Step())
	}
	require.True(t, notified)
}

package reactor_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundation42/microkernel/message"
	"github.com/foundation42/microkernel/reactor"
)

var owner = message.ActorID{Node: 1, Seq: 1}

func TestPollReportsReadableFD(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	rt := reactor.New()
	rt.Watch(int(r.Fd()), reactor.Readable, owner)

	ready, err := rt.Poll(0)
	require.NoError(t, err)
	require.Empty(t, ready, "nothing written yet, pipe should not be readable")

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	ready, err = rt.Poll(100)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.Equal(t, owner, ready[0].Owner)
	require.Equal(t, int(r.Fd()), ready[0].FD)
	require.NotZero(t, ready[0].Events&reactor.Readable)
}

func TestUnwatchStopsDelivery(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	rt := reactor.New()
	rt.Watch(int(r.Fd()), reactor.Readable, owner)
	rt.Unwatch(int(r.Fd()))
	require.Equal(t, 0, rt.Len())

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	ready, err := rt.Poll(0)
	require.NoError(t, err)
	require.Empty(t, ready)
}

func TestUnwatchOwnerRemovesEveryFDForThatOwner(t *testing.T) {
	r1, w1, err := os.Pipe()
	require.NoError(t, err)
	defer r1.Close()
	defer w1.Close()
	r2, w2, err := os.Pipe()
	require.NoError(t, err)
	defer r2.Close()
	defer w2.Close()

	rt := reactor.New()
	rt.Watch(int(r1.Fd()), reactor.Readable, owner)
	rt.Watch(int(r2.Fd()), reactor.Readable, owner)
	require.Equal(t, 2, rt.Len())

	rt.UnwatchOwner(owner)
	require.Equal(t, 0, rt.Len())
}

func TestPollWithNoWatchesIsANoOp(t *testing.T) {
	rt := reactor.New()
	ready, err := rt.Poll(0)
	require.NoError(t, err)
	require.Empty(t, ready)
}

package mailbox_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/foundation42/microkernel/mailbox"
	"github.com/foundation42/microkernel/message"
)

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	require.Equal(t, 2, mailbox.New(0).Capacity())
	require.Equal(t, 2, mailbox.New(1).Capacity())
	require.Equal(t, 2, mailbox.New(2).Capacity())
	require.Equal(t, 4, mailbox.New(3).Capacity())
	require.Equal(t, 8, mailbox.New(5).Capacity())
}

// TestMailboxFull: a capacity-2 mailbox accepts two enqueues, refuses a
// third, and accepts a fourth after one dequeue.
func TestMailboxFull(t *testing.T) {
	m := mailbox.New(2)
	msg := message.New(message.ActorID{Node: 1, Seq: 1}, message.ActorID{Node: 1, Seq: 2}, 1, nil)

	require.True(t, m.Enqueue(msg))
	require.True(t, m.Enqueue(msg))
	require.False(t, m.Enqueue(msg))

	_, ok := m.Dequeue()
	require.True(t, ok)

	require.True(t, m.Enqueue(msg))
}

func TestDequeueEmptyReturnsFalse(t *testing.T) {
	m := mailbox.New(4)
	_, ok := m.Dequeue()
	require.False(t, ok)
	require.True(t, m.IsEmpty())
}

func TestDrainDropsPendingMessages(t *testing.T) {
	m := mailbox.New(4)
	msg := message.New(message.Invalid, message.ActorID{Node: 1, Seq: 1}, 1, []byte("x"))
	m.Enqueue(msg)
	m.Enqueue(msg)
	m.Drain()
	require.True(t, m.IsEmpty())
	require.EqualValues(t, 0, m.Count())
}

// TestFIFOOrderProperty: any sequence of enqueues that all returned true
// dequeues in the same order, up to emptiness.
func TestFIFOOrderProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cap := rapid.IntRange(2, 64).Draw(rt, "capacity")
		m := mailbox.New(cap)

		var sent []message.Type
		n := rapid.IntRange(0, cap).Draw(rt, "count")
		for i := 0; i < n; i++ {
			typ := message.Type(rapid.IntRange(0, 1000).Draw(rt, "type"))
			msg := message.New(message.Invalid, message.ActorID{Node: 1, Seq: 1}, typ, nil)
			ok := m.Enqueue(msg)
			require.True(rt, ok, "enqueue within rounded capacity must succeed")
			sent = append(sent, typ)
		}

		for _, want := range sent {
			got, ok := m.Dequeue()
			require.True(rt, ok)
			require.Equal(rt, want, got.Type)
		}
		require.True(rt, m.IsEmpty())
	})
}

package actor_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/foundation42/microkernel/actor"
	"github.com/foundation42/microkernel/message"
)

func TestPendingRequestsResolveInvokesCallbackOnce(t *testing.T) {
	p := actor.NewPendingRequests()
	calls := 0
	var gotReply message.Message

	id := p.Begin(func(reply message.Message) {
		calls++
		gotReply = reply
	})
	require.Equal(t, 1, p.Pending())

	reply := message.New(message.Invalid, message.Invalid, 1, []byte("ok"))
	p.Resolve(id, reply)

	require.Equal(t, 1, calls)
	require.Equal(t, reply.Payload, gotReply.Payload)
	require.Equal(t, 0, p.Pending())

	// Resolving the same correlation again is a no-op.
	p.Resolve(id, reply)
	require.Equal(t, 1, calls)
}

func TestPendingRequestsResolveUnknownCorrelationIsNoOp(t *testing.T) {
	p := actor.NewPendingRequests()
	require.NotPanics(t, func() {
		p.Resolve(uuid.New(), message.Message{})
	})
}

func TestPendingRequestsCancel(t *testing.T) {
	p := actor.NewPendingRequests()
	calls := 0
	id := p.Begin(func(message.Message) { calls++ })

	p.Cancel(id)
	require.Equal(t, 0, p.Pending())

	p.Resolve(id, message.Message{})
	require.Equal(t, 0, calls)
}

func TestPendingRequestsMultipleInFlight(t *testing.T) {
	p := actor.NewPendingRequests()
	var order []int

	idA := p.Begin(func(message.Message) { order = append(order, 1) })
	idB := p.Begin(func(message.Message) { order = append(order, 2) })
	require.Equal(t, 2, p.Pending())

	p.Resolve(idB, message.Message{})
	p.Resolve(idA, message.Message{})

	require.Equal(t, []int{2, 1}, order)
}

package conc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/foundation42/microkernel/internal/conc"
)

func TestMailboxDeliversInFIFOOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	mb := conc.NewMailbox[int](conc.OptCapacity(4))
	mb.Start()
	defer mb.Stop()

	mb.SendC() <- 1
	mb.SendC() <- 2
	mb.SendC() <- 3

	for _, want := range []int{1, 2, 3} {
		select {
		case got := <-mb.ReceiveC():
			require.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for mailbox value")
		}
	}
}

func TestMailboxAsChanVariant(t *testing.T) {
	defer goleak.VerifyNone(t)

	mb := conc.NewMailbox[string](conc.OptAsChan(), conc.OptCapacity(2))
	mb.Start()
	defer mb.Stop()

	mb.SendC() <- "a"
	require.Equal(t, "a", <-mb.ReceiveC())
}

func TestCombineStartsAndStopsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var events []string
	a := conc.Idle(conc.OptOnStart(func() { events = append(events, "a-start") }), conc.OptOnStop(func() { events = append(events, "a-stop") }))
	b := conc.Idle(conc.OptOnStart(func() { events = append(events, "b-start") }), conc.OptOnStop(func() { events = append(events, "b-stop") }))

	c := conc.Combine(a, b)
	c.Start()
	c.Stop()

	require.Equal(t, []string{"a-start", "b-start", "b-stop", "a-stop"}, events)
}

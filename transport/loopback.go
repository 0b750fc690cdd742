package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	kmessage "github.com/foundation42/microkernel/message"
)

// LoopbackTransport is an in-process transport for running several nodes in
// one test binary without real sockets, backed by watermill's gochannel
// pub/sub. Two LoopbackTransports sharing a bus and addressed at each
// other's topic form a connected pair from the moment they're constructed.
type LoopbackTransport struct {
	bus       *gochannel.GoChannel
	selfTopic string
	peerTopic string
	peerNode  uint32

	mu     sync.Mutex
	cancel context.CancelFunc
	sub    <-chan *message.Message
	decoded []kmessage.Message
}

func topicFor(node uint32) string { return fmt.Sprintf("node-%d", node) }

// NewLoopbackBus creates a shared watermill gochannel pub/sub bus for
// NewLoopbackTransport to build transports on top of.
func NewLoopbackBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
}

// NewLoopbackTransport returns a transport for selfNode, addressed at
// peerNode, on the shared bus. Call it twice with nodes swapped to get a
// connected pair.
func NewLoopbackTransport(bus *gochannel.GoChannel, selfNode, peerNode uint32) (*LoopbackTransport, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx, topicFor(selfNode))
	if err != nil {
		cancel()
		return nil, err
	}
	return &LoopbackTransport{
		bus:       bus,
		selfTopic: topicFor(selfNode),
		peerTopic: topicFor(peerNode),
		peerNode:  peerNode,
		cancel:    cancel,
		sub:       sub,
	}, nil
}

// Send implements Transport.
func (t *LoopbackTransport) Send(msg kmessage.Message) bool {
	wmsg := message.NewMessage(watermill.NewUUID(), EncodeFrame(msg))
	return t.bus.Publish(t.peerTopic, wmsg) == nil
}

// Recv implements Transport; non-blocking, draining whatever is already
// waiting on the subscription channel.
func (t *LoopbackTransport) Recv() (kmessage.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.decoded) > 0 {
		msg := t.decoded[0]
		t.decoded = t.decoded[1:]
		return msg, true
	}

	select {
	case wmsg := <-t.sub:
		if wmsg == nil {
			return kmessage.Message{}, false
		}
		wmsg.Ack()
		msg, err := DecodeFrame(wmsg.Payload)
		if err != nil {
			return kmessage.Message{}, false
		}
		return msg, true
	default:
		return kmessage.Message{}, false
	}
}

// IsConnected implements Transport; a loopback pair is connected from
// construction.
func (t *LoopbackTransport) IsConnected() bool { return true }

// PeerNode implements Transport.
func (t *LoopbackTransport) PeerNode() uint32 { return t.peerNode }

// FD implements Transport; there is no OS descriptor behind a loopback bus.
func (t *LoopbackTransport) FD() int { return -1 }

// Close implements Transport.
func (t *LoopbackTransport) Close() error {
	t.cancel()
	return nil
}

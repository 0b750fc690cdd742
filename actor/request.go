package actor

import (
	"github.com/google/uuid"

	"github.com/foundation42/microkernel/message"
)

// PendingRequests resolves a correlated reply to a request sent from inside a
// Behavior: any request expecting a reply is expressed as a message the
// reply actor can match by correlation id. PendingRequests is that per-call
// waiter bookkeeping, kept inside the requesting actor's own state so no
// extra actor has to be spawned per call.
type PendingRequests struct {
	byCorrelation map[uuid.UUID]func(message.Message)
}

// NewPendingRequests returns empty request bookkeeping.
func NewPendingRequests() *PendingRequests {
	return &PendingRequests{byCorrelation: make(map[uuid.UUID]func(message.Message))}
}

// Begin allocates a correlation id and records onReply to be invoked when
// Resolve is later called with a reply carrying the same id. Returns the new
// correlation id to embed in the outgoing request payload.
func (p *PendingRequests) Begin(onReply func(message.Message)) uuid.UUID {
	id := uuid.New()
	p.byCorrelation[id] = onReply
	return id
}

// Resolve looks up and removes the waiter for correlation, invoking it with
// reply. It is a no-op if no waiter is registered (a stale or duplicate
// reply; messages already in flight cannot be canceled).
func (p *PendingRequests) Resolve(correlation uuid.UUID, reply message.Message) {
	cb, ok := p.byCorrelation[correlation]
	if !ok {
		return
	}
	delete(p.byCorrelation, correlation)
	cb(reply)
}

// Cancel drops a waiter without invoking it, e.g. on actor teardown.
func (p *PendingRequests) Cancel(correlation uuid.UUID) {
	delete(p.byCorrelation, correlation)
}

// Pending reports how many requests are awaiting a reply.
func (p *PendingRequests) Pending() int { return len(p.byCorrelation) }

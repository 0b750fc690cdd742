package registry

import (
	"github.com/foundation42/microkernel/actor"
	"github.com/foundation42/microkernel/message"
)

// Client lets a Behavior talk to a (possibly remote) registry actor entirely
// through NS_* messages instead of holding a *Registry directly, tracking
// in-flight requests with actor.PendingRequests so several lookups/registers
// can be outstanding at once without the caller hand-rolling correlation
// bookkeeping.
type Client struct {
	target  message.ActorID
	pending *actor.PendingRequests
}

// NewClient returns a Client that sends NS_* requests to target.
func NewClient(target message.ActorID) *Client {
	return &Client{target: target, pending: actor.NewPendingRequests()}
}

// Lookup sends an NS_LOOKUP request for path; onReply runs with the decoded
// Reply once the matching NS_REPLY arrives at this actor.
func (c *Client) Lookup(rt actor.Runtime, path string, onReply func(Reply)) {
	c.request(rt, message.NSLookup, path, message.Invalid, onReply)
}

// Register sends an NS_REGISTER request binding path to target.
func (c *Client) Register(rt actor.Runtime, path string, target message.ActorID, onReply func(Reply)) {
	c.request(rt, message.NSRegister, path, target, onReply)
}

// Mount sends an NS_MOUNT request forwarding prefix to target.
func (c *Client) Mount(rt actor.Runtime, prefix string, target message.ActorID, onReply func(Reply)) {
	c.request(rt, message.NSMount, prefix, target, onReply)
}

// Unmount sends an NS_UNMOUNT request for prefix.
func (c *Client) Unmount(rt actor.Runtime, prefix string, onReply func(Reply)) {
	c.request(rt, message.NSUnmount, prefix, message.Invalid, onReply)
}

// List sends an NS_LIST request for entries under prefix.
func (c *Client) List(rt actor.Runtime, prefix string, onReply func(Reply)) {
	c.request(rt, message.NSList, prefix, message.Invalid, onReply)
}

func (c *Client) request(rt actor.Runtime, typ message.Type, path string, target message.ActorID, onReply func(Reply)) {
	correlation := c.pending.Begin(func(msg message.Message) {
		rep, err := DecodeReply(msg.Payload)
		if err != nil {
			return
		}
		onReply(rep)
	})
	payload := EncodeRequest(Request{Correlation: correlation, Path: path, Target: target})
	rt.Send(c.target, typ, payload)
}

// HandleReply resolves the waiter matching msg's correlation id. A Behavior
// using Client should route its message.NSReply case here; replies with no
// matching waiter (already resolved, or from a stale retry) are dropped.
func (c *Client) HandleReply(msg message.Message) {
	rep, err := DecodeReply(msg.Payload)
	if err != nil {
		return
	}
	c.pending.Resolve(rep.Correlation, msg)
}

// Pending reports how many requests are awaiting a reply.
func (c *Client) Pending() int { return c.pending.Pending() }

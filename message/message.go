// Package message defines the Message envelope every actor exchanges: a
// source, a destination, an opaque 32-bit type code, and an owned payload.
package message

import "fmt"

// Type is the opaque 32-bit message type code. Values >= KernelTypeFloor are
// reserved for kernel-defined messages; everything below is free for user
// actors to assign meaning to.
type Type uint32

// KernelTypeFloor is the first reserved kernel message type. Behaviors must
// never emit a user message with a type at or above this value.
const KernelTypeFloor Type = 0xFF000000

// Kernel-reserved message types, delivered by the runtime itself.
const (
	Timer         Type = KernelTypeFloor + iota // carries a timer.ID payload
	FDEvent                                     // carries an fd + readiness mask
	ChildExit                                   // carries a child actor id + exit reason
	TransportReady                              // internal: a transport fd became readable
	NSRegister                                  // name-registry request/reply codes, see registry package
	NSLookup
	NSList
	NSMount
	NSUnmount
	NSReply
	NSNotify
	ConfigChanged // carries the reloaded config, see config.Watch
)

// Message is the immutable envelope delivered to exactly one mailbox.
// Payload is always a private copy: the constructor deep-copies the supplied
// bytes so the caller's buffer may be reused immediately after Send returns.
type Message struct {
	Source  ActorID
	Dest    ActorID
	Type    Type
	Payload []byte
}

// ActorID is the (node_id, local_seq) pair that addresses any actor in the
// system, local or remote. The zero value (seq 0) is the reserved invalid id.
type ActorID struct {
	Node uint32
	Seq  uint32
}

// Invalid is the reserved invalid actor id (seq == 0).
var Invalid = ActorID{}

// IsValid reports whether id has a non-zero local sequence number.
func (id ActorID) IsValid() bool { return id.Seq != 0 }

// String renders an id as "node:seq", matching the node_id/local_seq split
// that addresses every actor.
func (id ActorID) String() string {
	return fmt.Sprintf("%d:%d", id.Node, id.Seq)
}

// New builds a Message, deep-copying payload. A nil or empty payload is
// always treated as "no payload" — the zero-length case is never an error,
// only an allocation failure is (surfaced to the caller as a construction
// failure by returning a zero Message and ok=false is left to callers that
// need it; New itself cannot fail in Go, allocation exhaustion is not a
// recoverable condition the runtime models explicitly).
func New(source, dest ActorID, typ Type, payload []byte) Message {
	var owned []byte
	if len(payload) > 0 {
		owned = make([]byte, len(payload))
		copy(owned, payload)
	}
	return Message{Source: source, Dest: dest, Type: typ, Payload: owned}
}

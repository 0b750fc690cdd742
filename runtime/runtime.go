// Package runtime is the Router/Runtime that glues every other component
// together: it owns the event loop, routes local and remote sends, and
// supervises children.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btclog/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/foundation42/microkernel/actor"
	"github.com/foundation42/microkernel/message"
	"github.com/foundation42/microkernel/reactor"
	"github.com/foundation42/microkernel/registry"
	"github.com/foundation42/microkernel/scheduler"
	"github.com/foundation42/microkernel/timer"
	"github.com/foundation42/microkernel/transport"
)

// Named error values the runtime returns.
var (
	ErrInvalidDest  = errors.New("runtime: invalid destination")
	ErrNotFound     = errors.New("runtime: destination actor not found")
	ErrFull         = errors.New("runtime: mailbox full")
	ErrTableFull    = errors.New("runtime: actor table full")
	ErrNoTransport  = errors.New("runtime: no transport for destination node")
)

// defaultPollTimeoutMs bounds how long a step without any due timer blocks
// in the reactor.
const defaultPollTimeoutMs = 50

// Runtime is the single-node kernel instance. None of its state is
// protected by a lock: every mutation happens from inside Step, or from
// operations a Behavior invokes synchronously during its own dispatch (which
// is, by construction, still inside Step) — the single-threaded cooperative
// model this kernel is built on.
type Runtime struct {
	nodeID    uint32
	identity  string
	maxActors int

	actors  map[message.ActorID]*actor.Actor
	nextSeq uint32

	sched     *scheduler.Scheduler
	registry  *registry.Registry
	wheel     *timer.Wheel
	reactor   *reactor.Reactor
	transports []transport.Transport

	current *actor.Actor // set only while a Behavior is being invoked
	stopped bool

	configC chan []byte

	log    btclog.Logger
	tracer trace.Tracer
}

// ConfigListenerPath is the registry path a node-local actor mounts to
// receive ConfigChanged messages. If nothing is registered there, reloaded
// configuration is dropped.
const ConfigListenerPath = "/sys/config"

// New initializes a Runtime for nodeID, capped at maxActors live actors.
func New(nodeID uint32, identity string, maxActors int) *Runtime {
	return &Runtime{
		nodeID:    nodeID,
		identity:  identity,
		maxActors: maxActors,
		actors:    make(map[message.ActorID]*actor.Actor),
		nextSeq:   1,
		sched:     scheduler.New(),
		registry:  registry.New(0),
		wheel:     timer.New(),
		reactor:   reactor.New(),
		configC:   make(chan []byte, 1),
		log:       btclog.Disabled,
		tracer:    otel.Tracer("github.com/foundation42/microkernel/runtime"),
	}
}

// SetLogger installs a leveled logger; btclog.Disabled is used until one is
// set.
func (r *Runtime) SetLogger(log btclog.Logger) { r.log = log }

// NodeID returns this runtime's node id.
func (r *Runtime) NodeID() uint32 { return r.nodeID }

// Identity returns this runtime's human-readable identity string.
func (r *Runtime) Identity() string { return r.identity }

// ReadyCount returns how many actors are currently ready to run.
func (r *Runtime) ReadyCount() int { return r.sched.Len() }

// LiveActorCount returns how many actors currently exist.
func (r *Runtime) LiveActorCount() int { return len(r.actors) }

// LiveTimerCount returns how many timers are currently live.
func (r *Runtime) LiveTimerCount() int { return r.wheel.Len() }

// Transports returns the registered transports, for diagnostics.
func (r *Runtime) Transports() []transport.Transport { return r.transports }

// Registry exposes the name registry for direct (fast-path) access.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// AddTransport registers t for routing sends to its peer node.
func (r *Runtime) AddTransport(t transport.Transport) {
	r.transports = append(r.transports, t)
}

// Self returns the id of the actor currently being dispatched. It is only
// meaningful when called from inside a Behavior.
func (r *Runtime) Self() message.ActorID {
	if r.current == nil {
		return message.Invalid
	}
	return r.current.ID
}

// Spawn creates a new actor and returns its id.
func (r *Runtime) Spawn(behavior actor.Behavior, state any, release actor.ReleaseFunc, mailboxCap int) (message.ActorID, error) {
	if len(r.actors) >= r.maxActors {
		return message.Invalid, ErrTableFull
	}

	id := message.ActorID{Node: r.nodeID, Seq: r.nextSeq}
	r.nextSeq++

	a := actor.New(id, behavior, state, release, mailboxCap)
	if r.current != nil {
		a.Parent = r.current.ID
	}
	r.actors[id] = a
	return id, nil
}

// Stop enqueues a synthetic terminate instruction for id, interpreted by the
// runtime itself (not the actor's Behavior): after the next dispatch, the
// actor is torn down regardless of what its Behavior returns.
func (r *Runtime) Stop(id message.ActorID) {
	a, ok := r.actors[id]
	if !ok {
		return
	}
	a.Exit = actor.ExitKilled
	msg := message.New(message.Invalid, id, stopSignal, nil)
	if a.Mailbox.Enqueue(msg) && a.Status == actor.StatusIdle {
		r.sched.Enqueue(a)
	}
}

// stopSignal is an internal-only message type (outside the kernel-reserved
// range so it can never collide with a real kernel message) the step loop
// recognizes as "tear this actor down after this dispatch". It is never
// routed across a transport.
const stopSignal message.Type = message.KernelTypeFloor - 1

// Send implements the kernel's routing algorithm: local actors are
// delivered to directly, remote ones via whichever transport claims their
// node.
func (r *Runtime) Send(dest message.ActorID, typ message.Type, payload []byte) bool {
	if !dest.IsValid() {
		return false
	}

	ctx := context.Background()
	_, span := r.tracer.Start(ctx, "runtime.Send")
	defer span.End()

	source := message.Invalid
	if r.current != nil {
		source = r.current.ID
	}
	msg := message.New(source, dest, typ, payload)

	if dest.Node == r.nodeID {
		return r.deliverLocal(msg)
	}
	return r.deliverRemote(msg)
}

func (r *Runtime) deliverLocal(msg message.Message) bool {
	a, ok := r.actors[msg.Dest]
	if !ok {
		return false
	}
	if !a.Mailbox.Enqueue(msg) {
		r.log.Debugf("mailbox full for %s, dropping message type %d", msg.Dest, msg.Type)
		return false
	}
	if a.Status == actor.StatusIdle {
		r.sched.Enqueue(a)
	}
	return true
}

func (r *Runtime) deliverRemote(msg message.Message) bool {
	for _, t := range r.transports {
		if t.PeerNode() == msg.Dest.Node {
			return t.Send(msg)
		}
	}
	return false
}

// SetTimer schedules a timer for the currently dispatching actor.
func (r *Runtime) SetTimer(delay time.Duration, periodic bool) timer.ID {
	owner := r.Self()
	now := time.Now().UnixMicro()
	var period int64
	if periodic {
		period = delay.Microseconds()
	}
	return r.wheel.Set(owner, now, delay.Microseconds(), period)
}

// CancelTimer cancels a previously scheduled timer.
func (r *Runtime) CancelTimer(id timer.ID) { r.wheel.Cancel(id) }

// WatchFD registers the currently dispatching actor for readiness
// notifications on fd.
func (r *Runtime) WatchFD(fd int, events reactor.Events) {
	r.reactor.Watch(fd, events, r.Self())
}

// UnwatchFD removes fd from the watch set.
func (r *Runtime) UnwatchFD(fd int) { r.reactor.Unwatch(fd) }

// QueueConfigChanged enqueues a reloaded configuration for delivery into the
// step loop as a ConfigChanged message, sent to whatever actor is mounted at
// ConfigListenerPath. Safe to call from any goroutine (e.g. config.Watch's
// fsnotify callback); a reload that arrives before the previous one was
// delivered replaces it rather than queuing unboundedly.
func (r *Runtime) QueueConfigChanged(payload []byte) {
	select {
	case r.configC <- payload:
		return
	default:
	}
	select {
	case <-r.configC:
	default:
	}
	r.configC <- payload
}

// RuntimeStop sets the flag that makes Run exit at the top of its next
// iteration.
func (r *Runtime) RuntimeStop() { r.stopped = true }

// Stopped reports whether RuntimeStop has been called.
func (r *Runtime) Stopped() bool { return r.stopped }

// Run loops calling Step until RuntimeStop is called.
func (r *Runtime) Run() error {
	for !r.stopped {
		if err := r.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step runs exactly one iteration of the event loop: dispatch one ready
// actor's oldest message, advance the timer wheel, then poll for
// fd/transport readiness with a timeout derived from the nearest timer.
func (r *Runtime) Step() error {
	r.dispatchOne()
	r.advanceTimers()
	return r.pollAndRoute()
}

func (r *Runtime) dispatchOne() {
	a := r.sched.Dequeue()
	if a == nil {
		return
	}
	msg, ok := a.Mailbox.Dequeue()
	if !ok {
		a.Status = actor.StatusIdle
		return
	}

	a.Status = actor.StatusRunning
	r.current = a

	var cont bool
	if msg.Type == stopSignal {
		cont = false
	} else {
		cont = a.Behavior(r, a.ID, msg, a.State)
	}

	r.current = nil

	if !cont {
		r.teardown(a)
		return
	}
	if !a.Mailbox.IsEmpty() {
		r.sched.Enqueue(a)
	} else {
		a.Status = actor.StatusIdle
	}
}

func (r *Runtime) teardown(a *actor.Actor) {
	a.Status = actor.StatusStopped
	a.ReleaseState()
	a.Mailbox.Drain()
	r.reactor.UnwatchOwner(a.ID)
	delete(r.actors, a.ID)

	if a.Parent.IsValid() {
		if parent, ok := r.actors[a.Parent]; ok && parent.Status != actor.StatusStopped {
			payload := encodeChildExit(a.ID, a.Exit)
			r.current = parent
			childExitMsg := message.New(a.ID, parent.ID, message.ChildExit, payload)
			if parent.Mailbox.Enqueue(childExitMsg) && parent.Status == actor.StatusIdle {
				r.sched.Enqueue(parent)
			}
			r.current = nil
		}
	}
}

func encodeChildExit(child message.ActorID, reason actor.ExitReason) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(child.Node >> 24)
	buf[1] = byte(child.Node >> 16)
	buf[2] = byte(child.Node >> 8)
	buf[3] = byte(child.Node)
	buf[4] = byte(child.Seq >> 24)
	buf[5] = byte(child.Seq >> 16)
	buf[6] = byte(child.Seq >> 8)
	buf[7] = byte(child.Seq)
	buf[8] = byte(reason)
	return buf
}

// DecodeChildExit reverses encodeChildExit, for actors that want to inspect
// a MSG_CHILD_EXIT payload.
func DecodeChildExit(payload []byte) (child message.ActorID, reason actor.ExitReason, ok bool) {
	if len(payload) < 9 {
		return message.ActorID{}, 0, false
	}
	child.Node = uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
	child.Seq = uint32(payload[4])<<24 | uint32(payload[5])<<16 | uint32(payload[6])<<8 | uint32(payload[7])
	reason = actor.ExitReason(payload[8])
	return child, reason, true
}

func (r *Runtime) advanceTimers() {
	now := time.Now().UnixMicro()
	for _, fired := range r.wheel.Advance(now) {
		payload := []byte{
			byte(fired.ID >> 56), byte(fired.ID >> 48), byte(fired.ID >> 40), byte(fired.ID >> 32),
			byte(fired.ID >> 24), byte(fired.ID >> 16), byte(fired.ID >> 8), byte(fired.ID),
		}
		msg := message.New(message.Invalid, fired.Owner, message.Timer, payload)
		if a, ok := r.actors[fired.Owner]; ok {
			if a.Mailbox.Enqueue(msg) && a.Status == actor.StatusIdle {
				r.sched.Enqueue(a)
			}
		}
	}
}

func (r *Runtime) deliverConfigChanged() {
	select {
	case payload := <-r.configC:
		dest, err := r.registry.Lookup(ConfigListenerPath)
		if err != nil {
			r.log.Debugf("config reload with no listener mounted at %s, dropping", ConfigListenerPath)
			return
		}
		msg := message.New(message.Invalid, dest, message.ConfigChanged, payload)
		r.deliverLocal(msg)
	default:
	}
}

func (r *Runtime) pollAndRoute() error {
	r.deliverConfigChanged()

	timeoutMs := defaultPollTimeoutMs
	if fireAt, ok := r.wheel.NextFireAt(); ok {
		nowMs := time.Now().UnixMicro() / 1000
		deltaMs := int(fireAt/1000 - nowMs)
		if deltaMs < 0 {
			deltaMs = 0
		}
		timeoutMs = deltaMs
	}

	ready, err := r.reactor.Poll(timeoutMs)
	if err != nil {
		return err
	}
	for _, rd := range ready {
		payload := []byte{byte(rd.FD >> 24), byte(rd.FD >> 16), byte(rd.FD >> 8), byte(rd.FD), byte(rd.Events)}
		msg := message.New(message.Invalid, rd.Owner, message.FDEvent, payload)
		if a, ok := r.actors[rd.Owner]; ok {
			if a.Mailbox.Enqueue(msg) && a.Status == actor.StatusIdle {
				r.sched.Enqueue(a)
			}
		}
	}

	for _, t := range r.transports {
		for {
			msg, ok := t.Recv()
			if !ok {
				break
			}
			r.deliverLocal(msg)
		}
	}
	return nil
}

// DecodeTimerID extracts the timer.ID from a MSG_TIMER payload.
func DecodeTimerID(payload []byte) (timer.ID, bool) {
	if len(payload) < 8 {
		return 0, false
	}
	id := timer.ID(payload[0])<<56 | timer.ID(payload[1])<<48 | timer.ID(payload[2])<<40 | timer.ID(payload[3])<<32 |
		timer.ID(payload[4])<<24 | timer.ID(payload[5])<<16 | timer.ID(payload[6])<<8 | timer.ID(payload[7])
	return id, true
}

package conc

// MailboxOptions configures a Mailbox's internal buffering strategy.
type MailboxOptions struct {
	// UsingChan makes the mailbox a thin wrapper over a native Go channel
	// of the given Capacity instead of the dynamically growing queue.
	UsingChan bool
	// Capacity is the initial/native-channel capacity.
	Capacity int
	// MinCapacity bounds how small the dynamic queue is allowed to shrink
	// back to after a burst.
	MinCapacity int
}

// Options collects every Option applied to an Actor or Mailbox.
type Options struct {
	OnStart func()
	OnStop  func()
	Mailbox MailboxOptions
}

// Option mutates Options; the usual functional-options shape for this
// package's exported constructors.
type Option func(*Options)

func newOptions(opt []Option) Options {
	o := Options{
		Mailbox: MailboxOptions{
			Capacity:    16,
			MinCapacity: 16,
		},
	}
	for _, apply := range opt {
		apply(&o)
	}
	return o
}

// OptOnStart registers a hook run once before the actor's first DoWork call.
func OptOnStart(f func()) Option {
	return func(o *Options) { o.OnStart = f }
}

// OptOnStop registers a hook run once after the actor's loop exits.
func OptOnStop(f func()) Option {
	return func(o *Options) { o.OnStop = f }
}

// OptAsChan makes a Mailbox a native-channel mailbox instead of the default
// dynamically growing queue.
func OptAsChan() Option {
	return func(o *Options) { o.Mailbox.UsingChan = true }
}

// OptCapacity sets the mailbox's (native channel, or initial queue) capacity.
func OptCapacity(capacity int) Option {
	return func(o *Options) { o.Mailbox.Capacity = capacity }
}

// OptMinCapacity sets the floor the dynamic queue shrinks back to.
func OptMinCapacity(minCapacity int) Option {
	return func(o *Options) { o.Mailbox.MinCapacity = minCapacity }
}

package conc

// Idle returns an Actor that does no work of its own; it exists to run
// OnStart/OnStop hooks on the same Start/Stop lifecycle as any other Actor,
// e.g. a transport variant that owns only a socket fd and has nothing to
// poll on its own goroutine.
func Idle(opt ...Option) Actor {
	return New(WorkerFunc(func(c Context) WorkerStatus {
		<-c.Done()
		return WorkerEnd
	}), opt...)
}

package conc

import "sync"

// Actor is a background goroutine with a Start/Stop lifecycle. It is the
// bridge primitive: transport accept loops are expressed as Actors so the rest of the kernel only ever deals with channels and
// messages, never with raw goroutine management.
type Actor interface {
	Start()
	Stop()
}

// New returns an Actor that repeatedly calls w.DoWork until it returns
// WorkerEnd or the actor is stopped.
func New(w Worker, opt ...Option) Actor {
	o := newOptions(opt)
	return &actor{worker: w, opts: o}
}

type actor struct {
	worker Worker
	opts   Options

	startOnce sync.Once
	stopOnce  sync.Once
	ctx       cancelContext
	done      chan struct{}
}

func (a *actor) Start() {
	a.startOnce.Do(func() {
		a.ctx = newContext()
		a.done = make(chan struct{})

		if a.opts.OnStart != nil {
			a.opts.OnStart()
		}

		go func() {
			defer close(a.done)
			for {
				if a.worker.DoWork(a.ctx) == WorkerEnd {
					return
				}
				select {
				case <-a.ctx.Done():
					return
				default:
				}
			}
		}()
	})
}

func (a *actor) Stop() {
	a.stopOnce.Do(func() {
		if a.ctx.cancel != nil {
			a.ctx.cancel()
		}
		if a.done != nil {
			<-a.done
		}
		if a.opts.OnStop != nil {
			a.opts.OnStop()
		}
	})
}

package conc

import "context"

// Context is passed to Worker.DoWork so a worker can observe cancellation
// without holding a reference to the Actor that drives it.
type Context interface {
	context.Context
}

type cancelContext struct {
	context.Context
	cancel context.CancelFunc
}

func newContext() cancelContext {
	ctx, cancel := context.WithCancel(context.Background())
	return cancelContext{Context: ctx, cancel: cancel}
}

package runner

import "context"

// Runner is the opaque capability that actually executes a snippet. It must
// be safe to call from any worker goroutine and is assumed to eventually
// return; the pool imposes no timeout of its own, so a non-terminating
// snippet occupies its worker until the process exits.
type Runner interface {
	Execute(ctx context.Context, source string) (string, error)
}

// Func adapts an ordinary function to the Runner interface. Handy for tests
// and embedded use.
type Func func(ctx context.Context, source string) (string, error)

func (f Func) Execute(ctx context.Context, source string) (string, error) {
	return f(ctx, source)
}

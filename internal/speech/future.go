package speech

import (
	"context"
	"sync"

	"github.com/hammamikhairi/navcompanion/internal/domain"
)

// Future is the caller's handle on one enqueued announcement. It
// resolves exactly once: with a nil error when the announcement was
// spoken, skipped, or dropped by a flush, and with an error when it was
// aborted or no transport could speak it.
type Future struct {
	done    chan struct{}
	once    sync.Once
	outcome domain.Outcome
	err     error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolvedFuture returns a future that is already complete.
func resolvedFuture(outcome domain.Outcome, err error) *Future {
	f := newFuture()
	f.resolve(outcome, err)
	return f
}

func (f *Future) resolve(outcome domain.Outcome, err error) {
	f.once.Do(func() {
		f.outcome = outcome
		f.err = err
		close(f.done)
	})
}

// Done is closed once the announcement reached a final outcome.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the announcement resolves or ctx is done. A ctx
// error does not cancel the announcement itself.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the final error. Only meaningful after Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Outcome returns the final outcome, or OutcomePending while unresolved.
func (f *Future) Outcome() domain.Outcome {
	select {
	case <-f.done:
		return f.outcome
	default:
		return domain.OutcomePending
	}
}

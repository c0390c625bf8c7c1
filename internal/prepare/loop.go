package prepare

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Loop is an invoking context: a single consumer that completes finished
// invocations one at a time, in the order they became ready.
//
// Drive it either with Run, or from an external event loop with Next and
// Dispatch. Do not mix both on the same Loop.
type Loop struct {
	dispatcher *Dispatcher

	mu    sync.Mutex
	ready []*Invocation
	wake  chan struct{}
}

// NewLoop creates a loop completing invocations with d.
func NewLoop(d *Dispatcher) *Loop {
	return &Loop{
		dispatcher: d,
		wake:       make(chan struct{}, 1),
	}
}

// Notify hands a ready invocation to the loop. Pass it to WithNotify.
// It never blocks, however far the consumer lags behind.
func (l *Loop) Notify(inv *Invocation) {
	l.mu.Lock()
	l.ready = append(l.ready, inv)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of ready invocations not yet taken by Next.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ready)
}

// Run completes invocations until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		inv, err := l.Next(ctx)
		if err != nil {
			return err
		}
		_ = l.Dispatch(inv)
	}
}

// Next waits for the next ready invocation.
func (l *Loop) Next(ctx context.Context) (*Invocation, error) {
	for {
		if inv := l.pop(); inv != nil {
			return inv, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) pop() *Invocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ready) == 0 {
		return nil
	}
	inv := l.ready[0]
	l.ready[0] = nil
	l.ready = l.ready[1:]
	return inv
}

// Dispatch completes inv. Call it from the invoking context.
// It returns ErrNotReady or ErrCompleted when nothing was completed.
func (l *Loop) Dispatch(inv *Invocation) error {
	err := l.dispatcher.Complete(inv)
	if err != nil && !errors.Is(err, ErrCompleted) {
		Logger().Error("dispatch",
			zap.String("stmt", inv.req.StmtID),
			zap.Error(err))
	}
	return err
}

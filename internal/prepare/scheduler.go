package prepare

import (
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/joacominatel/asyncprep/internal/database"
)

// Scheduler runs executors on a bounded pool of background workers.
//
// Submissions are queued without bound, so Submit never waits for a worker
// or for the consumer of completions. Work for the same connection may be
// picked up by two workers at once; the connection lock inside the executor
// serializes them.
type Scheduler struct {
	exec    *Executor
	workers int
	notify  func(*Invocation)

	mu     sync.Mutex
	closed bool
	queue  []*Invocation
	wake   chan struct{}
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the number of background workers. Values below one
// fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		s.workers = n
	}
}

// WithNotify registers fn to be called from the worker once an invocation
// is ready to be completed. fn must not complete the invocation itself;
// it hands it over to the invoking context (see Loop.Notify). fn must not
// block.
func WithNotify(fn func(*Invocation)) Option {
	return func(s *Scheduler) {
		s.notify = fn
	}
}

// NewScheduler starts a scheduler over exec.
func NewScheduler(exec *Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		exec: exec,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}

	go s.feed(pool.New().WithMaxGoroutines(s.workers))
	return s
}

// Submit queues stmt for preparation and returns at once. handler is called
// exactly once, by whoever completes the returned invocation on the
// invoking context.
func (s *Scheduler) Submit(stmt *database.Statement, handler Handler) (*Invocation, error) {
	if stmt == nil || stmt.ID == "" || stmt.Conn == nil || handler == nil {
		return nil, ErrInvalidStatement
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	inv := newInvocation(stmt, handler)
	s.queue = append(s.queue, inv)
	s.mu.Unlock()

	s.signal()
	return inv, nil
}

// Workers returns the size of the worker pool.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Close stops accepting work and waits for queued invocations to finish
// their background phase.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.signal()
	<-s.done
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// take removes the queued invocations. done is true once the scheduler is
// closed and nothing is left.
func (s *Scheduler) take() (batch []*Invocation, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, s.queue = s.queue, nil
	return batch, s.closed && len(batch) == 0
}

func (s *Scheduler) feed(p *pool.Pool) {
	defer close(s.done)
	for {
		batch, done := s.take()
		if done {
			p.Wait()
			return
		}
		for _, inv := range batch {
			inv := inv
			p.Go(func() {
				s.run(inv)
			})
		}
		if len(batch) == 0 {
			<-s.wake
		}
	}
}

func (s *Scheduler) run(inv *Invocation) {
	inv.start()
	Logger().Debug("executing",
		zap.String("conn", inv.req.ConnID),
		zap.String("stmt", inv.req.StmtID))

	inv.finish(s.execute(inv.req))
	if s.notify != nil {
		s.notify(inv)
	}
}

// execute turns a panic in the native call into a failed outcome, so the
// invocation still completes.
func (s *Scheduler) execute(req Request) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("native prepare panicked",
				zap.String("conn", req.ConnID),
				zap.String("stmt", req.StmtID),
				zap.Any("panic", r))
			o = Outcome{
				StmtID: req.StmtID,
				Err:    &PanicError{ConnID: req.ConnID, StmtID: req.StmtID, Value: r},
			}
		}
	}()
	return s.exec.Execute(req)
}


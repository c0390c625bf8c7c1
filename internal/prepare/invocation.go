package prepare

import (
	"sync/atomic"
	"time"

	"github.com/joacominatel/asyncprep/internal/database"
)

// Handler receives the result of one invocation, exactly once.
// On success err is nil and stmtID is the statement id; on failure stmtID
// is empty.
type Handler func(stmtID string, err error)

// Request is the part of a statement the background phase works from.
// It is copied at submission so the executor never reads the Statement.
type Request struct {
	ConnID string
	StmtID string
	Text   string
	Inputs []database.Descriptor
}

// RequestFor snapshots stmt.
func RequestFor(stmt *database.Statement) Request {
	return Request{
		ConnID: stmt.Conn.ID,
		StmtID: stmt.ID,
		Text:   stmt.Text,
		Inputs: append([]database.Descriptor(nil), stmt.Inputs...),
	}
}

// Outcome is the one-shot result the executor hands to the dispatcher.
type Outcome struct {
	StmtID  string
	Kind    database.StatementKind
	Outputs []database.Descriptor
	Err     error
	Elapsed time.Duration
}

// Invocation tracks one submitted statement from Pending to Completed.
//
// The outcome slot belongs to the background phase until Ready is closed;
// after that it is only read by the dispatcher.
type Invocation struct {
	stmt    *database.Statement
	handler Handler
	req     Request

	state      atomic.Int32
	dispatched atomic.Bool
	ready      chan struct{}
	outcome    Outcome
	submitted  time.Time
}

func newInvocation(stmt *database.Statement, handler Handler) *Invocation {
	return &Invocation{
		stmt:      stmt,
		handler:   handler,
		req:       RequestFor(stmt),
		ready:     make(chan struct{}),
		submitted: time.Now(),
	}
}

// Statement returns the statement being prepared.
// Its result fields must not be read before the invocation completes.
func (inv *Invocation) Statement() *database.Statement {
	return inv.stmt
}

// State returns the current lifecycle state.
func (inv *Invocation) State() State {
	return State(inv.state.Load())
}

// Ready is closed once the background phase has finished.
func (inv *Invocation) Ready() <-chan struct{} {
	return inv.ready
}

// Outcome returns the executor result. ok is false while still executing.
func (inv *Invocation) Outcome() (Outcome, bool) {
	select {
	case <-inv.ready:
		return inv.outcome, true
	default:
		return Outcome{}, false
	}
}

// Submitted returns when the invocation was created.
func (inv *Invocation) Submitted() time.Time {
	return inv.submitted
}

func (inv *Invocation) start() {
	inv.state.Store(int32(StateExecuting))
}

// finish publishes o and hands ownership to the invoking side.
func (inv *Invocation) finish(o Outcome) {
	inv.outcome = o
	if o.Err != nil {
		inv.state.Store(int32(StateFailed))
	} else {
		inv.state.Store(int32(StateSucceeded))
	}
	close(inv.ready)
}

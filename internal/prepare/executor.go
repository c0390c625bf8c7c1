package prepare

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/joacominatel/asyncprep/internal/connlock"
	"github.com/joacominatel/asyncprep/internal/database"
)

// Executor runs the native prepare call for one request on a background
// worker. It only reads the request and writes the returned Outcome.
type Executor struct {
	native database.Native
	locks  *connlock.Locker
	pin    bool
}

// NewExecutor creates an executor. locks must wrap the same native library.
// A native that reports itself thread bound gets every hold run on a single
// locked OS thread.
func NewExecutor(native database.Native, locks *connlock.Locker) *Executor {
	e := &Executor{native: native, locks: locks}
	if tb, ok := native.(database.ThreadBound); ok {
		e.pin = tb.ThreadBound()
	}
	return e
}

// PinsThread reports whether Execute locks its goroutine to an OS thread.
func (e *Executor) PinsThread() bool {
	return e.pin
}

// Execute acquires the connection, prepares the statement and releases the
// connection again, whatever the prepare call returned.
func (e *Executor) Execute(req Request) Outcome {
	if e.pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	start := time.Now()
	out := Outcome{StmtID: req.StmtID}

	err := e.locks.With(req.ConnID, func() {
		var outputs []database.Descriptor
		code := e.native.Prepare(req.ConnID, req.StmtID, req.Text, req.Inputs, &outputs)
		if code < 0 {
			out.Err = &PrepareError{
				ConnID:  req.ConnID,
				StmtID:  req.StmtID,
				Code:    code,
				Message: e.native.ErrorMessage(code),
			}
			return
		}
		out.Kind = database.StatementKind(code)
		out.Outputs = outputs
	})
	if err != nil {
		out.Err = err
	}
	out.Elapsed = time.Since(start)

	if out.Err != nil {
		Logger().Debug("prepare failed",
			zap.String("conn", req.ConnID),
			zap.String("stmt", req.StmtID),
			zap.Error(out.Err))
	} else {
		Logger().Debug("prepared",
			zap.String("conn", req.ConnID),
			zap.String("stmt", req.StmtID),
			zap.Stringer("kind", out.Kind),
			zap.Int("outputs", len(out.Outputs)),
			zap.Duration("elapsed", out.Elapsed))
	}
	return out
}

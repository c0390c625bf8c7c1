package prepare

import (
	"go.uber.org/zap"

	"github.com/joacominatel/asyncprep/internal/layout"
)

// Dispatcher completes invocations on the invoking context.
type Dispatcher struct {
	calc *layout.Calculator
}

// NewDispatcher creates a dispatcher that sizes row buffers with calc.
func NewDispatcher(calc *layout.Calculator) *Dispatcher {
	if calc == nil {
		calc = layout.NewCalculator(nil)
	}
	return &Dispatcher{calc: calc}
}

// Complete delivers the outcome of inv to its handler.
//
// On success the row buffer size is calculated from the outputs the native
// call produced and stored on the statement before the handler runs. It
// returns ErrNotReady if the background phase is still running and
// ErrCompleted if inv was already completed; the handler is not called in
// either case.
func (d *Dispatcher) Complete(inv *Invocation) error {
	o, ok := inv.Outcome()
	if !ok {
		return ErrNotReady
	}
	if !inv.dispatched.CompareAndSwap(false, true) {
		return ErrCompleted
	}

	err := o.Err
	if err == nil {
		size, lerr := d.calc.Size(o.Outputs)
		if lerr != nil {
			err = lerr
		} else {
			inv.stmt.MarkPrepared(o.Kind, o.Outputs, size)
		}
	}

	if err != nil {
		Logger().Info("prepare failed",
			zap.String("stmt", o.StmtID),
			zap.Error(err))
		inv.handler("", err)
	} else {
		size, _ := inv.stmt.BufferSize()
		Logger().Info("prepare completed",
			zap.String("stmt", o.StmtID),
			zap.Stringer("kind", o.Kind),
			zap.Int("buffer_size", size),
			zap.Duration("elapsed", o.Elapsed))
		inv.handler(inv.stmt.ID, nil)
	}

	inv.state.Store(int32(StateCompleted))
	return nil
}

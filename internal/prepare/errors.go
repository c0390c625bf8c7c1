package prepare

import (
	"errors"
	"fmt"

	"github.com/joacominatel/asyncprep/internal/connlock"
)

var (
	ErrClosed           = errors.New("prepare: scheduler closed")
	ErrNotReady         = errors.New("prepare: invocation is still executing")
	ErrCompleted        = errors.New("prepare: invocation already completed")
	ErrInvalidStatement = errors.New("prepare: statement needs an id, a connection and a handler")
)

// LockAcquisitionError reports that the connection could not be acquired.
// No prepare call was made.
type LockAcquisitionError = connlock.AcquisitionError

// PrepareError reports a negative code from the native prepare call.
type PrepareError struct {
	ConnID  string
	StmtID  string
	Code    int32
	Message string
}

func (e *PrepareError) Error() string {
	return e.Message
}

// PanicError reports a panic raised by the native prepare call. The
// invocation is still completed with it.
type PanicError struct {
	ConnID string
	StmtID string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("prepare %s: native call panicked: %v", e.StmtID, e.Value)
}

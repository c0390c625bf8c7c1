package connlock

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	logger atomic.Pointer[zap.Logger]
	nop    = zap.NewNop()
)

// Logger returns the package logger. It is a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nop
}

// SetLogger replaces the package logger. It is safe to call while work is
// in flight; nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

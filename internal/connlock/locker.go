// Package connlock serializes native calls per database connection.
package connlock

import (
	"sync"

	"go.uber.org/zap"

	"github.com/joacominatel/asyncprep/internal/database"
)

// AcquisitionError is returned when the client library refuses to hand out
// a connection. Message is the library's text for Code.
type AcquisitionError struct {
	ConnID  string
	Code    int32
	Message string
}

func (e *AcquisitionError) Error() string {
	return e.Message
}

// Locker hands out at most one hold per connection id at a time.
//
// The in-process mutex is taken before the native acquire so that a second
// caller for the same connection blocks here instead of racing the library.
type Locker struct {
	native database.Native

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	mu   sync.Mutex
	refs int
	held bool
}

// New creates a Locker over the given client library.
func New(native database.Native) *Locker {
	return &Locker{
		native: native,
		slots:  make(map[string]*slot),
	}
}

// Acquire blocks until connID is free, then acquires it in the client library.
// Every nil return must be paired with exactly one Release.
func (l *Locker) Acquire(connID string) error {
	s := l.ref(connID)
	s.mu.Lock()

	if code := l.native.Acquire(connID); code < 0 {
		s.mu.Unlock()
		l.unref(connID, s)
		msg := l.native.ErrorMessage(code)
		Logger().Debug("acquire failed",
			zap.String("conn", connID),
			zap.Int32("code", code),
			zap.String("error", msg))
		return &AcquisitionError{ConnID: connID, Code: code, Message: msg}
	}

	l.mu.Lock()
	s.held = true
	l.mu.Unlock()
	return nil
}

// Release gives connID back to the client library and wakes the next waiter.
func (l *Locker) Release(connID string) {
	l.mu.Lock()
	s, ok := l.slots[connID]
	if !ok || !s.held {
		l.mu.Unlock()
		Logger().Warn("release without hold", zap.String("conn", connID))
		return
	}
	s.held = false
	l.mu.Unlock()

	l.native.Release(connID)
	s.mu.Unlock()
	l.unref(connID, s)
}

// With runs fn while holding connID. The hold is released on every path,
// including a panic in fn.
func (l *Locker) With(connID string, fn func()) error {
	if err := l.Acquire(connID); err != nil {
		return err
	}
	defer l.Release(connID)
	fn()
	return nil
}

// Held returns the number of connection ids that are held or waited on.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *Locker) ref(connID string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[connID]
	if !ok {
		s = &slot{}
		l.slots[connID] = s
	}
	s.refs++
	return s
}

func (l *Locker) unref(connID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, connID)
	}
}

package nativetest

import (
	"context"
	"errors"
	"sync"

	"github.com/joacominatel/asyncprep/internal/database"
)

// Driver adds connection management to Native. Open fails for DSNs listed
// in OpenErrors.
type Driver struct {
	*Native

	OpenErrors map[string]error

	mu          sync.Mutex
	open        map[string]string
	deallocated []string
	closed      bool
}

// NewDriver returns a Driver over a fresh Native.
func NewDriver() *Driver {
	return &Driver{
		Native:     New(),
		OpenErrors: make(map[string]error),
		open:       make(map[string]string),
	}
}

var _ database.Driver = (*Driver)(nil)

func (d *Driver) Open(_ context.Context, connID, dsn string) error {
	if err := d.OpenErrors[dsn]; err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.open[connID]; ok {
		return errors.New(database.Message(database.CodeConnectionInUse))
	}
	d.open[connID] = dsn
	return nil
}

func (d *Driver) Disconnect(connID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.open[connID]; !ok {
		return errors.New(database.Message(database.CodeNoConnection))
	}
	delete(d.open, connID)
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = make(map[string]string)
	d.closed = true
	return nil
}

// Deallocate records stmtID as dropped.
func (d *Driver) Deallocate(_ context.Context, _ string, stmtID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deallocated = append(d.deallocated, stmtID)
	return nil
}

// Deallocated returns the statement ids passed to Deallocate.
func (d *Driver) Deallocated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.deallocated...)
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

package prepare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/asyncprep/internal/connlock"
	"github.com/joacominatel/asyncprep/internal/database"
	"github.com/joacominatel/asyncprep/internal/database/nativetest"
	"github.com/joacominatel/asyncprep/internal/layout"
)

type result struct {
	stmtID string
	err    error
}

// startLoop wires a scheduler to a running Loop and tears both down with t.
func startLoop(t *testing.T, native database.Native, workers int) *Scheduler {
	t.Helper()

	exec := NewExecutor(native, connlock.New(native))
	loop := NewLoop(NewDispatcher(layout.NewCalculator(nil)))
	sched := NewScheduler(exec, WithWorkers(workers), WithNotify(loop.Notify))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = loop.Run(ctx)
	}()

	t.Cleanup(func() {
		sched.Close()
		cancel()
		<-stopped
	})
	return sched
}

func submitAndWait(t *testing.T, sched *Scheduler, stmt *database.Statement) result {
	t.Helper()
	ch := make(chan result, 2)
	_, err := sched.Submit(stmt, func(id string, err error) {
		ch <- result{stmtID: id, err: err}
	})
	require.NoError(t, err)

	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
		return result{}
	}
}

func TestPrepareQuerySucceeds(t *testing.T) {
	native := nativetest.New()
	native.Results["S1"] = nativetest.Result{
		Code: 1,
		Outputs: []database.Descriptor{
			{Type: database.TypeInt, Length: 4},
			{Type: database.TypeChar, Length: 9},
		},
	}
	sched := startLoop(t, native, 2)

	stmt := database.NewStatement("S1", &database.Connection{ID: "C1"}, "select id, name from t")
	r := submitAndWait(t, sched, stmt)

	require.NoError(t, r.err)
	assert.Equal(t, "S1", r.stmtID)

	kind, ok := stmt.Kind()
	require.True(t, ok)
	assert.Equal(t, database.KindQuery, kind)

	size, ok := stmt.BufferSize()
	require.True(t, ok)
	assert.Equal(t, 14, size)

	// the terminator adjustment is not written back
	assert.Equal(t, 9, stmt.Outputs[1].Length)

	acquires, releases := native.Counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
}

func TestLockAcquisitionFailure(t *testing.T) {
	native := nativetest.New()
	native.AcquireCodes["C1"] = -908
	sched := startLoop(t, native, 1)

	stmt := database.NewStatement("S1", &database.Connection{ID: "C1"}, "select 1")
	r := submitAndWait(t, sched, stmt)

	require.Error(t, r.err)
	assert.Empty(t, r.stmtID)
	assert.Equal(t, database.Message(-908), r.err.Error())

	var lockErr *LockAcquisitionError
	require.True(t, errors.As(r.err, &lockErr))
	assert.Equal(t, int32(-908), lockErr.Code)

	_, ok := stmt.BufferSize()
	assert.False(t, ok)
	_, ok = stmt.Kind()
	assert.False(t, ok)
	assert.Empty(t, native.Prepares(), "prepare must not run without the lock")
}

func TestPrepareFailure(t *testing.T) {
	native := nativetest.New()
	native.Results["S1"] = nativetest.Result{Code: -201}
	sched := startLoop(t, native, 1)

	stmt := database.NewStatement("S1", &database.Connection{ID: "C1"}, "select something;")
	r := submitAndWait(t, sched, stmt)

	require.Error(t, r.err)
	assert.Empty(t, r.stmtID)
	assert.Equal(t, "[-201] A syntax error has occurred.", r.err.Error())

	var prepErr *PrepareError
	require.True(t, errors.As(r.err, &prepErr))
	assert.Equal(t, "S1", prepErr.StmtID)
	assert.Equal(t, "C1", prepErr.ConnID)

	_, ok := stmt.Kind()
	assert.False(t, ok)
	_, ok = stmt.BufferSize()
	assert.False(t, ok)

	acquires, releases := native.Counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases, "lock must be released after a failed prepare")
}

func TestUnknownOutputTypeFailsCompletion(t *testing.T) {
	native := nativetest.New()
	native.Results["S1"] = nativetest.Result{
		Code:    1,
		Outputs: []database.Descriptor{{Type: database.TypeTag(99), Length: 4}},
	}
	sched := startLoop(t, native, 1)

	stmt := database.NewStatement("S1", &database.Connection{ID: "C1"}, "select x from t")
	r := submitAndWait(t, sched, stmt)

	var unknown *layout.UnknownTypeError
	require.True(t, errors.As(r.err, &unknown))
	assert.False(t, stmt.Prepared())
}

func TestSameConnectionNeverOverlaps(t *testing.T) {
	native := nativetest.New()
	native.Delay = 2 * time.Millisecond
	for i := 0; i < 40; i++ {
		if i%5 == 0 {
			native.Results[fmt.Sprintf("S%d", i)] = nativetest.Result{Code: -201}
		}
	}
	sched := startLoop(t, native, 8)

	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		conn := &database.Connection{ID: fmt.Sprintf("C%d", i%3)}
		stmt := database.NewStatement(fmt.Sprintf("S%d", i), conn, "select 1")
		wg.Add(1)
		_, err := sched.Submit(stmt, func(string, error) {
			calls.Add(1)
			wg.Done()
		})
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, int32(40), calls.Load())
	assert.Equal(t, 0, native.Overlaps())
	assert.Equal(t, 0, native.Unguarded())
	assert.Equal(t, 0, nativetest.OverlappingHolds(native.Holds()))

	acquires, releases := native.Counts()
	assert.Equal(t, 40, acquires)
	assert.Equal(t, acquires, releases)
}

func TestSubmitValidation(t *testing.T) {
	native := nativetest.New()
	sched := startLoop(t, native, 1)
	noop := func(string, error) {}

	_, err := sched.Submit(nil, noop)
	assert.ErrorIs(t, err, ErrInvalidStatement)

	_, err = sched.Submit(database.NewStatement("S1", nil, "select 1"), noop)
	assert.ErrorIs(t, err, ErrInvalidStatement)

	_, err = sched.Submit(database.NewStatement("", &database.Connection{ID: "C1"}, "select 1"), noop)
	assert.ErrorIs(t, err, ErrInvalidStatement)

	_, err = sched.Submit(database.NewStatement("S1", &database.Connection{ID: "C1"}, "select 1"), nil)
	assert.ErrorIs(t, err, ErrInvalidStatement)
}

func TestSubmitAfterClose(t *testing.T) {
	native := nativetest.New()
	exec := NewExecutor(native, connlock.New(native))
	sched := NewScheduler(exec, WithWorkers(1))
	sched.Close()
	sched.Close()

	_, err := sched.Submit(database.NewStatement("S1", &database.Connection{ID: "C1"}, "select 1"), func(string, error) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRequestForCopiesInputs(t *testing.T) {
	inputs := []database.Descriptor{{Type: database.TypeInt, Length: 4}}
	stmt := database.NewStatement("S1", &database.Connection{ID: "C1"}, "select * from t where id < ?", inputs...)

	req := RequestFor(stmt)
	stmt.Inputs[0].Length = 99

	assert.Equal(t, 4, req.Inputs[0].Length)
	assert.Equal(t, "C1", req.ConnID)
	assert.Equal(t, "S1", req.StmtID)
}

type panickingNative struct {
	*nativetest.Native
}

func (p panickingNative) Prepare(connID, stmtID, sql string, in []database.Descriptor, out *[]database.Descriptor) int32 {
	p.Native.Prepare(connID, stmtID, sql, in, out)
	panic("client library crashed")
}

func TestPanicInPrepareStillCompletes(t *testing.T) {
	native := nativetest.New()
	sched := startLoop(t, panickingNative{native}, 1)

	stmt := database.NewStatement("S1", &database.Connection{ID: "C1"}, "select 1")
	r := submitAndWait(t, sched, stmt)

	var panicErr *PanicError
	require.True(t, errors.As(r.err, &panicErr))
	assert.Equal(t, "S1", panicErr.StmtID)
	assert.Equal(t, "C1", panicErr.ConnID)
	assert.Equal(t, "client library crashed", panicErr.Value)
	assert.False(t, stmt.Prepared())

	acquires, releases := native.Counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases, "lock must be released when prepare panics")
}

func TestPanicLeavesWorkerUsable(t *testing.T) {
	native := nativetest.New()
	exec := NewExecutor(panickingNative{native}, connlock.New(native))
	loop := NewLoop(NewDispatcher(nil))
	sched := NewScheduler(exec, WithWorkers(1), WithNotify(loop.Notify))
	t.Cleanup(sched.Close)

	var errs []error
	for _, id := range []string{"S1", "S2"} {
		_, err := sched.Submit(database.NewStatement(id, &database.Connection{ID: "C1"}, "select 1"), func(_ string, err error) {
			errs = append(errs, err)
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		inv, err := loop.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateFailed, inv.State())
		require.NoError(t, loop.Dispatch(inv))
		assert.Equal(t, StateCompleted, inv.State())
	}
	require.Len(t, errs, 2)
	for _, err := range errs {
		var panicErr *PanicError
		assert.True(t, errors.As(err, &panicErr))
	}
}

func TestSubmitDoesNotBlockOnSlowConsumer(t *testing.T) {
	const n = 300
	native := nativetest.New()
	exec := NewExecutor(native, connlock.New(native))
	loop := NewLoop(NewDispatcher(nil))
	sched := NewScheduler(exec, WithWorkers(1), WithNotify(loop.Notify))
	t.Cleanup(sched.Close)

	var handled atomic.Int32
	submitted := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			stmt := database.NewStatement(fmt.Sprintf("S%d", i), &database.Connection{ID: "C1"}, "select 1")
			if _, err := sched.Submit(stmt, func(string, error) { handled.Add(1) }); err != nil {
				submitted <- err
				return
			}
		}
		submitted <- nil
	}()

	// nothing is dispatched until every submission has returned
	select {
	case err := <-submitted:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked while no invocation was being dispatched")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		inv, err := loop.Next(ctx)
		require.NoError(t, err)
		require.NoError(t, loop.Dispatch(inv))
	}
	assert.Equal(t, int32(n), handled.Load())
	assert.Zero(t, loop.Pending())
}

func TestExecutorPinsThreadBoundNatives(t *testing.T) {
	plain := nativetest.New()
	assert.False(t, NewExecutor(plain, connlock.New(plain)).PinsThread())

	bound := nativetest.New()
	bound.Threaded = true
	exec := NewExecutor(bound, connlock.New(bound))
	assert.True(t, exec.PinsThread())

	out := exec.Execute(Request{ConnID: "C1", StmtID: "S1", Text: "select 1"})
	require.NoError(t, out.Err)
	acquires, releases := bound.Counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
}

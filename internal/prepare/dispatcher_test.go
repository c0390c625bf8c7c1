package prepare

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/asyncprep/internal/connlock"
	"github.com/joacominatel/asyncprep/internal/database"
	"github.com/joacominatel/asyncprep/internal/database/nativetest"
)

func TestDispatcherStateMachine(t *testing.T) {
	native := nativetest.New()
	native.Delay = 20 * time.Millisecond
	exec := NewExecutor(native, connlock.New(native))
	sched := NewScheduler(exec, WithWorkers(1))
	t.Cleanup(sched.Close)

	d := NewDispatcher(nil)
	calls := 0
	stmt := database.NewStatement("S1", &database.Connection{ID: "C1"}, "select 1")
	inv, err := sched.Submit(stmt, func(string, error) { calls++ })
	require.NoError(t, err)

	assert.Contains(t, []State{StatePending, StateExecuting}, inv.State())
	assert.ErrorIs(t, d.Complete(inv), ErrNotReady)
	assert.Equal(t, 0, calls)

	select {
	case <-inv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("invocation never became ready")
	}
	assert.Equal(t, StateSucceeded, inv.State())

	require.NoError(t, d.Complete(inv))
	assert.Equal(t, StateCompleted, inv.State())
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t, d.Complete(inv), ErrCompleted)
	assert.Equal(t, 1, calls)
}

func TestDispatcherFailedState(t *testing.T) {
	native := nativetest.New()
	native.Results["S1"] = nativetest.Result{Code: -201}
	exec := NewExecutor(native, connlock.New(native))
	sched := NewScheduler(exec, WithWorkers(1))
	t.Cleanup(sched.Close)

	var gotErr error
	inv, err := sched.Submit(database.NewStatement("S1", &database.Connection{ID: "C1"}, "select"), func(_ string, err error) {
		gotErr = err
	})
	require.NoError(t, err)
	<-inv.Ready()

	assert.Equal(t, StateFailed, inv.State())
	o, ok := inv.Outcome()
	require.True(t, ok)
	assert.Error(t, o.Err)

	require.NoError(t, NewDispatcher(nil).Complete(inv))
	assert.Error(t, gotErr)
	assert.Equal(t, StateCompleted, inv.State())
}

func TestLoopNextAndDispatch(t *testing.T) {
	native := nativetest.New()
	exec := NewExecutor(native, connlock.New(native))
	loop := NewLoop(NewDispatcher(nil))
	sched := NewScheduler(exec, WithWorkers(2), WithNotify(loop.Notify))
	t.Cleanup(sched.Close)

	var ids []string
	for _, id := range []string{"S1", "S2"} {
		_, err := sched.Submit(database.NewStatement(id, &database.Connection{ID: "C1"}, "select 1"), func(id string, err error) {
			require.NoError(t, err)
			ids = append(ids, id)
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		inv, err := loop.Next(ctx)
		require.NoError(t, err)
		require.NoError(t, loop.Dispatch(inv))
	}
	assert.ElementsMatch(t, []string{"S1", "S2"}, ids)
}

func TestLoopRunStopsWithContext(t *testing.T) {
	loop := NewLoop(NewDispatcher(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestLoopDispatchTwiceReportsCompleted(t *testing.T) {
	native := nativetest.New()
	exec := NewExecutor(native, connlock.New(native))
	loop := NewLoop(NewDispatcher(nil))
	sched := NewScheduler(exec, WithWorkers(1), WithNotify(loop.Notify))
	t.Cleanup(sched.Close)

	calls := 0
	_, err := sched.Submit(database.NewStatement("S1", &database.Connection{ID: "C1"}, "select 1"), func(string, error) {
		calls++
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	inv, err := loop.Next(ctx)
	require.NoError(t, err)

	require.NoError(t, loop.Dispatch(inv))
	assert.ErrorIs(t, loop.Dispatch(inv), ErrCompleted)
	assert.Equal(t, 1, calls)
}

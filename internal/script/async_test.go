package script

import (
	"context"
	"testing"

	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/testutil"
	"github.com/joeycumines/reactree/internal/tree"
	"github.com/stretchr/testify/require"
)

// tickUntilReady ticks a until it reports Ready.
func tickUntilReady(t *testing.T, a *tree.Action) (bool, error) {
	t.Helper()
	var (
		outcome bool
		err     error
	)
	testutil.Eventually(t, func() bool {
		var status tree.Status
		outcome, status, err = a.Tick()
		return status == tree.Ready
	})
	return outcome, err
}

func TestAsyncAction_PromiseSpansTicks(t *testing.T) {
	t.Parallel()

	bb := blackboard.New(map[string]any{"AT_WALL": false})
	e := New(bb)
	t.Cleanup(func() { _ = e.Close() })

	a, err := e.AsyncAction(`
new Promise(function (resolve) {
	setTimeout(function () {
		blackboard.set("AT_WALL", true);
		resolve("arrived");
	}, 20);
})`, tree.WithName("moveToWall"))
	require.NoError(t, err)
	require.Equal(t, tree.ModeAsync, a.Mode())
	require.Equal(t, "moveToWall", a.Name())

	_, status, err := a.Tick()
	require.NoError(t, err)
	require.Equal(t, tree.Busy, status)

	outcome, err := tickUntilReady(t, a)
	require.NoError(t, err)
	require.True(t, outcome)
	require.Equal(t, true, bb.Get("AT_WALL"))
}

func TestAsyncAction_PlainValue(t *testing.T) {
	t.Parallel()

	bb := blackboard.New(nil)
	e := New(bb)
	t.Cleanup(func() { _ = e.Close() })

	a, err := e.AsyncAction(`blackboard.set("ran", true); 0`)
	require.NoError(t, err)

	_, status, _ := a.Tick()
	require.Equal(t, tree.Busy, status, "async work is never Ready on its dispatch tick")

	outcome, err := tickUntilReady(t, a)
	require.NoError(t, err)
	require.False(t, outcome)
	require.Equal(t, true, bb.Get("ran"))
}

func TestAsyncAction_Rejection(t *testing.T) {
	t.Parallel()

	e := New(blackboard.New(nil))
	t.Cleanup(func() { _ = e.Close() })

	a, err := e.AsyncAction(`Promise.reject(new Error("gripper jammed"))`)
	require.NoError(t, err)
	_, _, _ = a.Tick()

	outcome, err := tickUntilReady(t, a)
	require.False(t, outcome)
	require.ErrorIs(t, err, ErrRejected)
	require.ErrorContains(t, err, "gripper jammed")
}

func TestAsyncAction_ThrowIsFault(t *testing.T) {
	t.Parallel()

	e := New(blackboard.New(nil))
	t.Cleanup(func() { _ = e.Close() })

	a, err := e.AsyncAction(`null.missing`)
	require.NoError(t, err)
	_, _, _ = a.Tick()

	outcome, err := tickUntilReady(t, a)
	require.False(t, outcome)
	var cbErr *tree.CallbackError
	require.ErrorAs(t, err, &cbErr)
}

func TestAsyncAction_AfterClose(t *testing.T) {
	t.Parallel()

	e := New(blackboard.New(nil))
	a, err := e.AsyncAction(`true`)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, _, _ = a.Tick()
	outcome, err := tickUntilReady(t, a)
	require.False(t, outcome)
	require.ErrorIs(t, err, ErrClosed)

	// sync scripts do not depend on the loop
	c, err := e.Condition(`true`)
	require.NoError(t, err)
	outcome, _, err = c.Tick()
	require.NoError(t, err)
	require.True(t, outcome)
}

func TestAsyncAction_CancelInterruptsRunningScript(t *testing.T) {
	t.Parallel()

	e := New(blackboard.New(nil))
	t.Cleanup(func() { _ = e.Close() })

	spin, err := e.AsyncAction(`for (;;) {}`, tree.WithName("spin"))
	require.NoError(t, err)
	next, err := e.AsyncAction(`true`, tree.WithName("next"))
	require.NoError(t, err)

	// Reset abandons the dispatch, which must also free the loop
	_, status, _ := spin.Tick()
	require.Equal(t, tree.Busy, status)
	spin.Reset()

	_, _, _ = next.Tick()
	outcome, err := tickUntilReady(t, next)
	require.NoError(t, err)
	require.True(t, outcome)

	// so does cancelling the action's context
	ctx, cancel := context.WithCancel(context.Background())
	spinCtx, err := e.AsyncAction(`for (;;) {}`, tree.WithName("spin"), tree.WithContext(ctx))
	require.NoError(t, err)
	_, status, _ = spinCtx.Tick()
	require.Equal(t, tree.Busy, status)
	cancel()

	outcome, err = tickUntilReady(t, spinCtx)
	require.False(t, outcome)
	require.ErrorIs(t, err, tree.ErrCancelled)

	_, _, _ = next.Tick()
	outcome, err = tickUntilReady(t, next)
	require.NoError(t, err)
	require.True(t, outcome)
}

package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoll_ConditionBecomesTrue(t *testing.T) {
	t.Parallel()

	var calls int
	err := Poll(context.Background(), func() bool {
		calls++
		return calls >= 3
	}, AsyncCompletionTimeout, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestPoll_Timeout(t *testing.T) {
	t.Parallel()

	err := Poll(context.Background(), func() bool { return false }, 30*time.Millisecond, time.Millisecond)
	require.ErrorContains(t, err, "timeout waiting for condition")
}

func TestPoll_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checked := make(chan struct{})
	go func() {
		<-checked
		cancel()
	}()

	var once atomic.Bool
	err := Poll(ctx, func() bool {
		if once.CompareAndSwap(false, true) {
			close(checked)
		}
		return false
	}, AsyncCompletionTimeout, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitForState_ValueFromAnotherGoroutine(t *testing.T) {
	t.Parallel()

	var ticks atomic.Uint64
	go func() {
		for i := 0; i < 5; i++ {
			ticks.Add(1)
			time.Sleep(time.Millisecond)
		}
	}()

	got, err := WaitForState(context.Background(), ticks.Load,
		func(n uint64) bool { return n >= 5 },
		AsyncCompletionTimeout, PollingInterval)
	require.NoError(t, err)
	require.Equal(t, uint64(5), got)
}

func TestWaitForState_ZeroValueOnFailure(t *testing.T) {
	t.Parallel()

	status := func() string { return "BUSY" }
	ready := func(s string) bool { return s == "READY" }

	got, err := WaitForState(context.Background(), status, ready, 20*time.Millisecond, time.Millisecond)
	require.ErrorContains(t, err, "timeout waiting for target state")
	require.Empty(t, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err = WaitForState(ctx, status, ready, AsyncCompletionTimeout, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, got)
}

type fakeTB struct {
	failed string
}

func (f *fakeTB) Helper() {}

func (f *fakeTB) Fatalf(format string, args ...any) {
	f.failed = fmt.Sprintf(format, args...)
}

func TestEventually(t *testing.T) {
	t.Parallel()

	var tb fakeTB
	calls := 0
	Eventually(&tb, func() bool {
		calls++
		return calls >= 2
	})
	require.Empty(t, tb.failed)
	require.Equal(t, 2, calls)
}

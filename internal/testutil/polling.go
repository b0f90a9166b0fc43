// Package testutil provides helpers shared by package tests: polling with
// consistent timeouts for async actions, and a fake clock for driving the
// scheduler deterministically.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// Poll repeatedly checks a condition until it becomes true or timeout expires.
// Returns an error if timeout expires before condition becomes true.
func Poll(ctx context.Context, condition func() bool, timeout time.Duration, interval time.Duration) error {
	start := time.Now()
	for {
		if condition() {
			return nil
		}

		if time.Since(start) >= timeout {
			return fmt.Errorf("timeout waiting for condition (threshold: %v)", timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
			// Continue polling
		}
	}
}

// WaitForState waits until the state getter returns a value that satisfies
// the predicate function, or timeout expires.
//
// Example usage:
//
//	status, err := WaitForState(ctx, tickStatus,
//		func(s tree.Status) bool { return s == tree.Ready },
//		AsyncCompletionTimeout,
//		PollingInterval)
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout time.Duration, interval time.Duration) (T, error) {
	start := time.Now()
	for {
		state := getter()

		if predicate(state) {
			return state, nil
		}

		if time.Since(start) >= timeout {
			var zero T
			return zero, fmt.Errorf("timeout waiting for target state (type %T, threshold: %v)", *new(T), timeout)
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(interval):
			// Continue polling
		}
	}
}

// Eventually is Poll with the package defaults, failing t on timeout.
func Eventually(t TB, condition func() bool, msgAndArgs ...any) {
	t.Helper()
	if err := Poll(context.Background(), condition, AsyncCompletionTimeout, PollingInterval); err != nil {
		if len(msgAndArgs) > 0 {
			if format, ok := msgAndArgs[0].(string); ok {
				t.Fatalf("%v: "+format, append([]any{err}, msgAndArgs[1:]...)...)
			}
		}
		t.Fatalf("%v", err)
	}
}

// TB is the subset of testing.TB used by this package.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

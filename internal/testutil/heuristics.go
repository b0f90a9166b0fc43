package testutil

import "time"

// AsyncCompletionTimeout bounds how long tests wait for async action work
// running on its own goroutine to signal completion.
//
// Rationale:
//   - the work under test completes in microseconds; the budget only has to
//     absorb goroutine scheduling delays under -race on loaded CI machines
//   - shorter timeouts caused false failures on shared runners
//   - longer timeouts mask real deadlocks by swallowing slowness
const AsyncCompletionTimeout = 2 * time.Second

// PollingInterval is the default interval between condition checks
// in Poll() and WaitForState() utilities.
//
// Rationale:
//   - 5ms keeps async action tests fast while not spinning the CPU
//   - the scheduler itself is never driven by this value
//
// Usage:
//
//	Poll(ctx, condition, timeout, PollingInterval)
//	WaitForState(ctx, getter, predicate, timeout, PollingInterval)
const PollingInterval = 5 * time.Millisecond

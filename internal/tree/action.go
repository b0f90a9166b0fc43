package tree

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joeycumines/reactree/internal/blackboard"
)

// Mode selects how an Action completes its work.
type Mode int

const (
	// ModeSync runs the work inside the tick that starts it.
	ModeSync Mode = iota
	// ModeAsync starts the work once and stays Busy until Done is signalled.
	ModeAsync
	// ModePolling calls the work on every tick until it stops reporting Busy.
	ModePolling
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	case ModePolling:
		return "polling"
	default:
		return "unknown"
	}
}

type (
	// Work is a unit of synchronous work returning its outcome.
	Work func(bb *blackboard.Blackboard) (bool, error)

	// Done delivers the result of async work. Only the first call per
	// dispatch is honoured; it may be called from any goroutine.
	Done func(outcome bool, err error)

	// AsyncWork starts a unit of work that completes by calling done. It is
	// called on the ticking goroutine and must not block; ctx is cancelled
	// once the result has been consumed or the action is Reset.
	AsyncWork func(ctx context.Context, bb *blackboard.Blackboard, done Done)

	// Poll advances a unit of work by one step. Returning Busy signals that
	// the work continues; the outcome is only read when Ready is returned.
	Poll func(bb *blackboard.Blackboard) (Status, bool, error)
)

// Go adapts a blocking function into AsyncWork that runs it on its own
// goroutine. Panics inside fn are reported through done.
func Go(fn func(ctx context.Context, bb *blackboard.Blackboard) (bool, error)) AsyncWork {
	return func(ctx context.Context, bb *blackboard.Blackboard, done Done) {
		go func() {
			var (
				outcome bool
				err     error
			)
			defer func() {
				if r := recover(); r != nil {
					outcome, err = false, fmt.Errorf("%w: %v", ErrPanic, r)
				}
				done(outcome, err)
			}()
			outcome, err = fn(ctx, bb)
		}()
	}
}

// Action is a leaf performing a unit of possibly long-running work.
//
// Status and outcome are owned by each instance. While Busy, ticking never
// restarts the work: async actions only check for completion and polling
// actions call their Poll again.
type Action struct {
	name   string
	mode   Mode
	bb     *blackboard.Blackboard
	ctx    context.Context
	logger *slog.Logger

	work  Work
	start AsyncWork
	poll  Poll

	mu      sync.Mutex
	status  Status
	outcome bool

	// async dispatch state, guarded by mu
	generation uint64
	finished   bool
	result     bool
	resultErr  error
	cancel     context.CancelFunc
}

// NewAction returns a synchronous Action.
func NewAction(bb *blackboard.Blackboard, work Work, opts ...Option) *Action {
	a := newAction(bb, ModeSync, opts)
	a.work = work
	return a
}

// NewAsyncAction returns an Action whose work spans ticks until done is
// called.
func NewAsyncAction(bb *blackboard.Blackboard, start AsyncWork, opts ...Option) *Action {
	a := newAction(bb, ModeAsync, opts)
	a.start = start
	return a
}

// NewPollingAction returns an Action driven by a Poll callback.
func NewPollingAction(bb *blackboard.Blackboard, poll Poll, opts ...Option) *Action {
	a := newAction(bb, ModePolling, opts)
	a.poll = poll
	return a
}

func newAction(bb *blackboard.Blackboard, mode Mode, opts []Option) *Action {
	o := applyOptions("action", opts)
	return &Action{
		name:   o.name,
		mode:   mode,
		bb:     bb,
		ctx:    o.ctx,
		logger: o.logger,
		status: Ready,
	}
}

// Name implements Node.
func (a *Action) Name() string { return a.name }

// Mode returns the configured completion mode.
func (a *Action) Mode() Mode { return a.mode }

// Logger returns the logger set with WithLogger, or slog.Default().
func (a *Action) Logger() *slog.Logger { return a.logger }

// Tick implements Node.
func (a *Action) Tick() (bool, Status, error) {
	switch a.mode {
	case ModeAsync:
		return a.tickAsync()
	case ModePolling:
		return a.tickPolling()
	default:
		return a.tickSync()
	}
}

func (a *Action) tickSync() (bool, Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.status = Busy
	var (
		outcome bool
		err     error
	)
	if a.work != nil {
		outcome, err = invoke("action", a.name, func() (bool, error) {
			return a.work(a.bb)
		})
	}
	a.outcome = outcome
	a.status = Ready
	return outcome, Ready, err
}

func (a *Action) tickPolling() (bool, Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.poll == nil {
		a.outcome, a.status = false, Ready
		return false, Ready, nil
	}

	a.status = Busy
	type step struct {
		status  Status
		outcome bool
	}
	s, err := invoke("action", a.name, func() (step, error) {
		status, outcome, err := a.poll(a.bb)
		return step{status, outcome}, err
	})
	if err != nil {
		a.outcome, a.status = false, Ready
		return false, Ready, err
	}
	if s.status == Busy {
		return a.outcome, Busy, nil
	}
	a.outcome, a.status = s.outcome, Ready
	return s.outcome, Ready, nil
}

func (a *Action) tickAsync() (bool, Status, error) {
	a.mu.Lock()

	if a.status == Busy {
		if a.finished {
			outcome, err := a.result, a.resultErr
			a.settleLocked(outcome)
			a.mu.Unlock()
			return outcome, Ready, err
		}
		if a.ctx.Err() != nil {
			a.settleLocked(false)
			a.mu.Unlock()
			a.logger.Debug("async action cancelled while busy", "action", a.name)
			return false, Ready, fmt.Errorf("action %q: %w", a.name, ErrCancelled)
		}
		stale := a.outcome
		a.mu.Unlock()
		return stale, Busy, nil
	}

	if a.ctx.Err() != nil {
		a.outcome = false
		a.mu.Unlock()
		return false, Ready, fmt.Errorf("action %q: %w", a.name, ErrCancelled)
	}
	if a.start == nil {
		a.outcome = false
		a.mu.Unlock()
		return false, Ready, nil
	}

	a.generation++
	gen := a.generation
	a.status = Busy
	a.finished = false
	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel
	stale := a.outcome
	a.mu.Unlock()

	a.logger.Debug("async action dispatched", "action", a.name, "generation", gen)

	done := func(outcome bool, err error) { a.complete(gen, outcome, err) }
	if _, err := invoke("action", a.name, func() (struct{}, error) {
		a.start(ctx, a.bb, done)
		return struct{}{}, nil
	}); err != nil {
		// start itself faulted; surface it on the next tick like any result
		a.complete(gen, false, err)
	}

	return stale, Busy, nil
}

// complete records the result for dispatch gen, ignoring stale or repeated
// signals.
func (a *Action) complete(gen uint64, outcome bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation || a.status != Busy || a.finished {
		return
	}
	if err != nil {
		if _, ok := err.(*CallbackError); !ok {
			err = &CallbackError{Node: a.name, Kind: "action", Err: err}
		}
		outcome = false
	}
	a.finished = true
	a.result = outcome
	a.resultErr = err
}

// settleLocked returns the action to Ready with outcome and releases the
// dispatch context. mu must be held.
func (a *Action) settleLocked(outcome bool) {
	a.generation++
	a.outcome = outcome
	a.status = Ready
	a.finished = false
	a.result = false
	a.resultErr = nil
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// Reset abandons in-flight async work and returns the action to Ready,
// keeping the last completed outcome. Late Done signals from the abandoned
// dispatch are ignored.
func (a *Action) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settleLocked(a.outcome)
}

func (a *Action) blackboard() *blackboard.Blackboard { return a.bb }

func (*Action) node() {}
